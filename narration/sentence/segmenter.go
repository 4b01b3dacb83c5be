// Package sentence splits a streamed narration into sentences as soon as
// they close.
package sentence

import "strings"

// terminators closes a sentence. Only ASCII punctuation counts, so text that
// relies on other sentence marks stays buffered until Flush.
const terminators = ".?!"

// Segmenter accumulates streamed text and emits finished sentences.
//
// Every terminator character ends a sentence on its own: "Wait..." yields
// "Wait." followed by two candidates holding nothing but punctuation, which
// are dropped. Transcripts written by earlier versions depend on that split,
// so it is kept as is.
//
// A Segmenter is not safe for concurrent use; it belongs to one narration.
type Segmenter struct {
	buf strings.Builder
}

// NewSegmenter returns an empty segmenter.
func NewSegmenter() *Segmenter {
	return &Segmenter{}
}

// Append adds a fragment and returns the sentences it completed, in order.
func (s *Segmenter) Append(fragment string) []string {
	if fragment == "" {
		return nil
	}
	s.buf.WriteString(fragment)

	text := s.buf.String()
	if !strings.ContainsAny(fragment, terminators) {
		return nil
	}

	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		if strings.IndexByte(terminators, text[i]) < 0 {
			continue
		}
		if sentence := strings.TrimSpace(text[start : i+1]); !blank(sentence) {
			sentences = append(sentences, sentence)
		}
		start = i + 1
	}

	s.buf.Reset()
	s.buf.WriteString(text[start:])
	return sentences
}

// Flush emits whatever is left once the stream has ended. It reports false
// when nothing but whitespace remained.
func (s *Segmenter) Flush() (string, bool) {
	rest := strings.TrimSpace(s.buf.String())
	s.buf.Reset()
	if rest == "" {
		return "", false
	}
	return rest, true
}

// Pending returns the unconsumed text without clearing it.
func (s *Segmenter) Pending() string {
	return s.buf.String()
}

// Reset drops any buffered text.
func (s *Segmenter) Reset() {
	s.buf.Reset()
}

// blank reports whether a candidate holds nothing but terminators.
func blank(candidate string) bool {
	return strings.Trim(candidate, terminators) == ""
}
