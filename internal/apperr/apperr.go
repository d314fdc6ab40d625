// Package apperr defines the error kinds returned by session, ingestion and search operations.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a stable tag identifying a class of failure. Kinds are part of the API
// error body and must not be renamed.
type Kind string

const (
	KindSessionNotFound  Kind = "session_not_found"
	KindEmptyQuery       Kind = "empty_query"
	KindNoDocuments      Kind = "no_documents"
	KindInvalidInput     Kind = "invalid_input"
	KindExtraction       Kind = "extraction_error"
	KindEmbedding        Kind = "embedding_error"
	KindPartialEmbedding Kind = "partial_embedding"
	KindIndex            Kind = "index_error"
	KindInternal         Kind = "internal_error"
)

// ClientFault reports whether errors of this kind are caused by the request rather
// than by a provider or runtime failure.
func (k Kind) ClientFault() bool {
	switch k {
	case KindSessionNotFound, KindEmptyQuery, KindNoDocuments, KindInvalidInput, KindExtraction:
		return true
	default:
		return false
	}
}

// Error is the concrete error type for every kind. Succeeded and Total are only
// meaningful for KindPartialEmbedding.
type Error struct {
	Kind      Kind
	Op        string
	Message   string
	Err       error
	Succeeded int
	Total     int
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind, so sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrSessionNotFound  = &Error{Kind: KindSessionNotFound}
	ErrEmptyQuery       = &Error{Kind: KindEmptyQuery}
	ErrNoDocuments      = &Error{Kind: KindNoDocuments}
	ErrInvalidInput     = &Error{Kind: KindInvalidInput}
	ErrExtraction       = &Error{Kind: KindExtraction}
	ErrEmbedding        = &Error{Kind: KindEmbedding}
	ErrPartialEmbedding = &Error{Kind: KindPartialEmbedding}
	ErrIndex            = &Error{Kind: KindIndex}
)

// KindOf returns the kind of err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func SessionNotFound(op, sessionID string) error {
	return &Error{Kind: KindSessionNotFound, Op: op, Message: fmt.Sprintf("session %s not found", sessionID)}
}

func EmptyQuery(op string) error {
	return &Error{Kind: KindEmptyQuery, Op: op, Message: "query cannot be empty"}
}

func NoDocuments(op, sessionID string) error {
	return &Error{Kind: KindNoDocuments, Op: op, Message: fmt.Sprintf("session %s has no documents", sessionID)}
}

func InvalidInput(op, message string) error {
	return &Error{Kind: KindInvalidInput, Op: op, Message: message}
}

func Extraction(op string, err error) error {
	return &Error{Kind: KindExtraction, Op: op, Message: "failed to extract document", Err: err}
}

func Embedding(op string, err error) error {
	return &Error{Kind: KindEmbedding, Op: op, Message: "failed to embed text", Err: err}
}

// PartialEmbedding reports that only succeeded of total pages were embedded and the
// document was not committed.
func PartialEmbedding(op string, succeeded, total int, err error) error {
	return &Error{
		Kind:      KindPartialEmbedding,
		Op:        op,
		Message:   fmt.Sprintf("embedded %d of %d pages; document not added", succeeded, total),
		Err:       err,
		Succeeded: succeeded,
		Total:     total,
	}
}

func Index(op string, err error) error {
	return &Error{Kind: KindIndex, Op: op, Message: "vector index failure", Err: err}
}
