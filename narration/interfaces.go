// Package narration turns a streamed AI response into spoken, highlighted
// sentences.
package narration

import (
	"context"
	"path/filepath"
	"strings"
)

// Fragment is one chunk of text delivered by the AI stream. A fragment
// carrying Err is the last one a failed stream sends.
type Fragment struct {
	Text string
	Err  error
}

// SourceKind tells what a narration is about.
type SourceKind int

const (
	// SourceImage narrates a photo.
	SourceImage SourceKind = iota
	// SourcePrompt answers a question.
	SourcePrompt
)

// String returns the string representation of the kind.
func (k SourceKind) String() string {
	switch k {
	case SourceImage:
		return "image"
	case SourcePrompt:
		return "question"
	default:
		return "unknown"
	}
}

// Source is the input of one narration.
type Source struct {
	Kind   SourceKind
	Image  []byte // Raw image bytes for SourceImage
	MIME   string // Image content type, e.g. "image/jpeg"
	Path   string // Where the image came from, if anywhere
	Prompt string // Question text for SourcePrompt
}

// ImageSource returns a source that narrates an image.
func ImageSource(path string, data []byte, mime string) Source {
	return Source{Kind: SourceImage, Image: data, MIME: mime, Path: path}
}

// PromptSource returns a source that answers a question.
func PromptSource(prompt string) Source {
	return Source{Kind: SourcePrompt, Prompt: strings.TrimSpace(prompt)}
}

// Title returns a short human label for the source.
func (s Source) Title() string {
	switch s.Kind {
	case SourceImage:
		if s.Path != "" {
			return filepath.Base(s.Path)
		}
		return "photo"
	default:
		return s.Prompt
	}
}

// FragmentSource produces the AI response for a source as a stream of
// fragments. The channel is closed when the response ends; on failure the
// last fragment carries the error.
type FragmentSource interface {
	Stream(ctx context.Context, src Source) (<-chan Fragment, error)
}

// Synthesizer speaks one utterance at a time.
//
// Speak starts an utterance and returns immediately; done is called exactly
// once when the utterance finishes or fails. Cancel stops the in-flight
// utterance; its done may still fire afterwards and is ignored by the queue.
type Synthesizer interface {
	Speak(text string, done func(error)) error
	Pause() error
	Resume() error
	Cancel() error
}

// Unit is one rendered sentence in the transcript. SetSpeaking is called
// while the queue holds its lock, so implementations must not block or call
// back into the queue.
type Unit interface {
	SetSpeaking(speaking bool)
}

// Display renders the transcript of the current narration.
type Display interface {
	// Clear removes the previous transcript.
	Clear()
	// AddSentence appends one sentence and returns its display unit.
	AddSentence(text string) Unit
	// ShowError replaces the transcript with a message.
	ShowError(message string)
	// SetControlsEnabled turns the playback control on or off.
	SetControlsEnabled(enabled bool)
}
