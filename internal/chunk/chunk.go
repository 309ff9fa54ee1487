// Package chunk splits document text into overlapping word-window chunks
// for embedding. Splitting is deterministic: the same text and settings
// always produce the same chunk set and ids.
package chunk

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// DefaultSize is the default window size in words.
	DefaultSize = 500

	// DefaultOverlap is the default number of words shared between
	// consecutive windows.
	DefaultOverlap = 100
)

// Engine produces overlapping word windows from document text.
type Engine struct {
	size    int
	overlap int
}

// NewEngine returns an Engine with the given window size and overlap,
// both in words. Non-positive size or negative overlap fall back to the
// defaults; size/overlap validity is normally enforced by config
// validation before an Engine is built.
func NewEngine(size, overlap int) *Engine {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	return &Engine{size: size, overlap: overlap}
}

// Split breaks text into word windows of the configured size, each window
// advanced by size-overlap words from the previous one. Windows are joined
// with single spaces, so original whitespace is not preserved.
//
// Split never returns an empty slice: text with no words (including the
// empty string) comes back as a single chunk containing the original text.
// An overlap >= size clamps the step to one word per window rather than
// failing.
func (e *Engine) Split(text string) []string {
	words := strings.Fields(text)

	step := e.size - e.overlap
	if step < 1 {
		step = 1
	}

	var chunks []string
	for i := 0; i < len(words); i += step {
		end := i + e.size
		if end > len(words) {
			end = len(words)
		}
		if c := strings.Join(words[i:end], " "); c != "" {
			chunks = append(chunks, c)
		}
	}

	if len(chunks) == 0 {
		return []string{text}
	}
	return chunks
}

// ID returns the stable chunk id for the index-th chunk of the document
// identified by stem. Ids are md5 hex of "<stem>_<index>" so a document's
// chunk set can be regenerated without consulting the store.
func ID(stem string, index int) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s_%d", stem, index)))
	return hex.EncodeToString(sum[:])
}
