package stream

import (
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

// FrameDetector decides whether the accumulated buffer holds a complete
// frame. It is consulted after every byte that could end one.
type FrameDetector interface {
	Complete(buf []byte) bool
}

// candidateDetector is implemented by detectors that only ever fire on a
// buffer ending in one particular byte, letting the decoder skip ahead.
type candidateDetector interface {
	Candidate() byte
}

// TrailingNewline fires when the last two bytes of the buffer, read as
// text, are one character followed by a newline. Because the pair is read
// as grapheme clusters, "\r\n" counts as a single character and does not
// fire, and neither does a lone "\n" or a newline preceded by an
// incomplete UTF-8 sequence.
type TrailingNewline struct{}

func (TrailingNewline) Complete(buf []byte) bool {
	if len(buf) < 2 {
		return false
	}
	tail := buf[len(buf)-2:]
	if !utf8.Valid(tail) {
		return false
	}
	_, rest, _, _ := uniseg.FirstGraphemeClusterInString(string(tail), -1)
	return rest == "\n"
}

func (TrailingNewline) Candidate() byte { return '\n' }

// DetectorFunc adapts a function to FrameDetector.
type DetectorFunc func(buf []byte) bool

func (f DetectorFunc) Complete(buf []byte) bool { return f(buf) }
