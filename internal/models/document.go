// Package models defines core data structures for sessions, documents, queries, and search results.
package models

import (
	"errors"
	"time"
)

// ErrVectorAlreadySet is returned when a page vector is assigned twice.
var ErrVectorAlreadySet = errors.New("page vector already set")

// Document is an ingested document. It is immutable once appended to a session.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Filename  string    `json:"filename,omitempty"`
	Pages     []*Page   `json:"pages"`
	CreatedAt time.Time `json:"created_at"`
}

// Page is one page of a document. Number is 1-based.
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
	vector []float32
}

// NewPage returns a page without a vector.
func NewPage(number int, text string) *Page {
	return &Page{Number: number, Text: text}
}

// Vector returns the page embedding, or nil before it is set.
func (p *Page) Vector() []float32 {
	return p.vector
}

// SetVector assigns the page embedding. A page vector can be set only once.
func (p *Page) SetVector(v []float32) error {
	if p.vector != nil {
		return ErrVectorAlreadySet
	}
	p.vector = v
	return nil
}

// Embedded reports whether every page has a vector.
func (d *Document) Embedded() bool {
	for _, p := range d.Pages {
		if p.vector == nil {
			return false
		}
	}
	return len(d.Pages) > 0
}

// DocumentInput is an already-extracted document submitted for ingestion.
type DocumentInput struct {
	Title    string      `json:"title"`
	Filename string      `json:"filename,omitempty"`
	Pages    []PageInput `json:"pages"`
}

// PageInput is one page of a DocumentInput. Number may be zero, in which case
// pages are numbered in order.
type PageInput struct {
	Number int    `json:"number,omitempty"`
	Text   string `json:"text"`
}
