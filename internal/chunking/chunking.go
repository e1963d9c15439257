// Package chunking implements the boundary-aware text splitter used
// during ingestion. The default strategy is a greedy, priority-ordered
// boundary splitter; an alternate strategy delegates to eino-ext's
// recursive splitter for callers that want its separator cascade
// instead.
package chunking

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino-ext/components/document/transformer/splitter/recursive"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"ragserver/pkg/zlog"
)

// sentenceTerminators end a sentence when followed by whitespace. They
// share one rank in boundaryEnd: below newlines, above plain whitespace.
var sentenceTerminators = []rune{'.', '!', '?'}

// Utility splits text into an ordered sequence of overlapping chunks.
// A zero-value Utility is not usable; construct with New.
type Utility struct {
	chunkSize    int
	chunkOverlap int
	useRecursive bool

	initOnce      sync.Once
	initErr       error
	recursiveImpl document.Transformer
}

// New builds a boundary-priority Utility. overlap must be non-negative
// and strictly less than size; violating this is a programming error
// per the ingestion contract and New panics rather than silently
// clamping, so misconfiguration fails at startup, not mid-ingestion.
func New(size, overlap int) *Utility {
	if size <= 0 {
		panic("chunking: chunk_size must be positive")
	}
	if overlap < 0 {
		panic("chunking: chunk_overlap must be non-negative")
	}
	if overlap >= size {
		panic("chunking: chunk_overlap must be < chunk_size")
	}
	return &Utility{chunkSize: size, chunkOverlap: overlap}
}

// NewRecursive builds a Utility backed by eino-ext's recursive
// splitter instead of the boundary-priority greedy algorithm, mirroring
// the same size/overlap contract.
func NewRecursive(size, overlap int) *Utility {
	u := New(size, overlap)
	u.useRecursive = true
	return u
}

// Chunk splits text into an ordered sequence of chunks, each of length
// at most chunkSize runes, carrying chunkOverlap runes of context
// forward from the end of one chunk to the start of the next. When the
// Utility was built with NewRecursive, splitting is delegated to
// eino-ext's recursive splitter instead of the boundary-priority greedy
// algorithm below.
func (u *Utility) Chunk(text string) []string {
	if text == "" {
		return []string{}
	}
	if u.useRecursive {
		parts, err := u.recursiveSplit(context.Background(), text)
		if err != nil {
			zlog.Error("recursive chunk strategy failed, falling back to boundary splitter", zap.Error(err))
			return u.chunkGreedy(text)
		}
		return parts
	}
	return u.chunkGreedy(text)
}

func (u *Utility) chunkGreedy(text string) []string {
	runes := []rune(text)
	total := len(runes)
	if total <= u.chunkSize {
		return []string{text}
	}

	var chunks []string
	step := u.chunkSize - u.chunkOverlap

	start := 0
	for start < total {
		end := start + u.chunkSize
		if end >= total {
			end = total
		} else {
			end = boundaryEnd(runes, start, end)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end >= total {
			break
		}
		next := end - u.chunkOverlap
		if next <= start {
			next = start + step
		}
		start = next
	}

	return chunks
}

// boundaryEnd searches backward from the naive cut point "end" for the
// best-priority boundary within the window [start, end], preferring
// double newline, then single newline, then a sentence terminator
// followed by whitespace, then plain whitespace, then falling back to
// the hard cut at end.
func boundaryEnd(runes []rune, start, end int) int {
	window := runes[start:end]

	if idx := lastIndexRunes(window, []rune("\n\n")); idx >= 0 {
		return start + idx + 2
	}
	if idx := lastIndexRune(window, '\n'); idx >= 0 {
		return start + idx + 1
	}
	if idx := lastSentenceBoundary(window); idx >= 0 {
		return start + idx
	}
	if idx := lastIndexWhitespace(window); idx >= 0 {
		return start + idx + 1
	}
	return end
}

func lastIndexRunes(haystack, needle []rune) int {
	return strings.LastIndex(string(haystack), string(needle))
}

func lastIndexRune(haystack []rune, r rune) int {
	for i := len(haystack) - 1; i >= 0; i-- {
		if haystack[i] == r {
			return i
		}
	}
	return -1
}

func lastSentenceBoundary(window []rune) int {
	for i := len(window) - 2; i >= 0; i-- {
		if isSentenceTerminator(window[i]) && isSpace(window[i+1]) {
			return i + 2
		}
	}
	return -1
}

func isSentenceTerminator(r rune) bool {
	for _, t := range sentenceTerminators {
		if r == t {
			return true
		}
	}
	return false
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func lastIndexWhitespace(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if isSpace(window[i]) {
			return i
		}
	}
	return -1
}

// recursiveSplit lazily initializes eino-ext's recursive splitter and
// returns the chunk contents it produces for text, in order.
func (u *Utility) recursiveSplit(ctx context.Context, text string) ([]string, error) {
	u.initOnce.Do(func() {
		impl, err := recursive.NewSplitter(ctx, &recursive.Config{
			ChunkSize:   u.chunkSize,
			OverlapSize: u.chunkOverlap,
			Separators:  []string{"\n\n", "\n", ". ", "! ", "? ", " "},
			LenFunc:     func(s string) int { return len([]rune(s)) },
			KeepType:    recursive.KeepTypeEnd,
		})
		if err != nil {
			u.initErr = err
			return
		}
		u.recursiveImpl = impl
	})
	if u.initErr != nil {
		return nil, u.initErr
	}
	if u.recursiveImpl == nil {
		return nil, fmt.Errorf("chunking: recursive splitter not initialized")
	}

	frags, err := u.recursiveImpl.Transform(ctx, []*schema.Document{{Content: text}})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(frags))
	for _, f := range frags {
		if f == nil || f.Content == "" {
			continue
		}
		out = append(out, f.Content)
	}
	return out, nil
}

// ChunkDocuments applies the configured strategy to a batch of eino
// documents, stamping chunk_index into each resulting fragment's
// metadata and carrying the parent's metadata forward.
func (u *Utility) ChunkDocuments(ctx context.Context, docs []*schema.Document) ([]*schema.Document, error) {
	if len(docs) == 0 {
		return []*schema.Document{}, nil
	}

	out := make([]*schema.Document, 0, len(docs))
	for _, d := range docs {
		if d == nil {
			continue
		}
		var parts []string
		var err error
		if u.useRecursive {
			parts, err = u.recursiveSplit(ctx, d.Content)
		} else {
			parts = u.chunkGreedy(d.Content)
		}
		if err != nil {
			return nil, err
		}
		for i, part := range parts {
			out = append(out, fragment(d, part, i))
		}
	}
	return out, nil
}

func fragment(parent *schema.Document, content string, index int) *schema.Document {
	n := &schema.Document{Content: content, MetaData: map[string]any{}}
	for k, v := range parent.MetaData {
		n.MetaData[k] = v
	}
	n.MetaData["chunk_index"] = index
	return n
}
