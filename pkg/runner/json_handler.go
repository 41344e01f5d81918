package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// JSONHandler implements the IOHandler interface for structured JSON-Lines communication.
// Each frame is written as one JSON object. Each input line is either an Input object,
// a JSON string or raw text.
type JSONHandler struct {
	Reader  *bufio.Reader
	Writer  io.Writer
	Encoder *json.Encoder

	Sanitizer Sanitizer
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Reader:  bufio.NewReader(r),
		Writer:  w,
		Encoder: json.NewEncoder(w),
	}
}

func (h *JSONHandler) Present(ctx context.Context, frame Frame) error {
	return h.Encoder.Encode(frame)
}

func (h *JSONHandler) Input(ctx context.Context) (Input, error) {
	for {
		text, err := h.Reader.ReadString('\n')
		text = strings.TrimSpace(text)
		if text == "" {
			if err != nil {
				return Input{}, err
			}
			continue
		}

		in, decodeErr := parseInputLine(text)
		if decodeErr != nil {
			return Input{}, decodeErr
		}
		clean, sanitizeErr := h.Sanitizer.Clean(in.Utterance)
		if sanitizeErr != nil {
			_ = h.SystemOutput(ctx, sanitizeErr.Error())
			if err != nil {
				return Input{}, err
			}
			continue
		}
		in.Utterance = clean
		return in, nil
	}
}

func parseInputLine(text string) (Input, error) {
	if strings.HasPrefix(text, "{") {
		var in Input
		if err := json.Unmarshal([]byte(text), &in); err != nil {
			return Input{}, fmt.Errorf("invalid input line: %w", err)
		}
		return in, nil
	}
	var val string
	if err := json.Unmarshal([]byte(text), &val); err == nil {
		return Input{Utterance: val}, nil
	}
	return Input{Utterance: text}, nil
}

func (h *JSONHandler) SystemOutput(ctx context.Context, msg string) error {
	return h.Encoder.Encode(map[string]string{"type": "system", "message": msg})
}
