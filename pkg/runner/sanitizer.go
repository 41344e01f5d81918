package runner

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxUtteranceBytes bounds one raw utterance.
const DefaultMaxUtteranceBytes = 4096

var (
	ErrUtteranceTooLarge = errors.New("utterance exceeds maximum allowed size")
	ErrInvalidUTF8       = errors.New("utterance contains invalid UTF-8 sequences")
)

// Sanitizer normalizes utterances before they reach the evaluator and the session log.
// The zero value is ready to use.
type Sanitizer struct {
	// MaxBytes caps the raw utterance. Zero or less means DefaultMaxUtteranceBytes.
	MaxBytes int
}

// Limit returns the effective byte limit.
func (s Sanitizer) Limit() int {
	if s.MaxBytes > 0 {
		return s.MaxBytes
	}
	return DefaultMaxUtteranceBytes
}

// Clean rejects oversized or malformed utterances and returns the normalized text:
// CRLF and lone CR become newlines, other control characters except tab are dropped,
// runs of blank lines collapse into one and surrounding whitespace is trimmed.
// An utterance that is only whitespace cleans to "".
func (s Sanitizer) Clean(utterance string) (string, error) {
	if limit := s.Limit(); len(utterance) > limit {
		// Rejected, never cut: a truncated utterance would be judged out of context.
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrUtteranceTooLarge, len(utterance), limit)
	}
	if !utf8.ValidString(utterance) {
		return "", ErrInvalidUTF8
	}

	utterance = strings.ReplaceAll(utterance, "\r\n", "\n")
	utterance = strings.ReplaceAll(utterance, "\r", "\n")

	var b strings.Builder
	b.Grow(len(utterance))
	for _, r := range utterance {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}

	lines := strings.Split(b.String(), "\n")
	kept := lines[:0]
	blank := false
	for _, line := range lines {
		line = strings.TrimRightFunc(line, unicode.IsSpace)
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n")), nil
}
