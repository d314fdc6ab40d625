package indexer

import "github.com/hyperjump/shirabe/pkg/utils"

// Preprocess normalizes text for embedding (trim, collapse whitespace).
func Preprocess(text string) string {
	return utils.CollapseWhitespace(text)
}

// embeddingInput returns the text sent to the embedder for a page: preprocessed and
// cut to maxWords words. The stored page text is not changed.
func embeddingInput(text string, maxWords int) string {
	return utils.TruncateWords(Preprocess(text), maxWords)
}
