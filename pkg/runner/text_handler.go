package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aretw0/scenaria/internal/presentation/tui"
	"github.com/aretw0/scenaria/pkg/domain"
)

// ContentRenderer transforms markdown before it is written, e.g. glamour for terminals.
type ContentRenderer func(string) (string, error)

// TextHandler implements the standard text-based interface.
type TextHandler struct {
	Reader   *bufio.Reader
	Writer   io.Writer
	Renderer ContentRenderer

	// ShowPrompts prints each phase's system prompt when it is entered.
	ShowPrompts bool

	Sanitizer Sanitizer

	inputChan chan inputResult
	startOnce sync.Once
}

type inputResult struct {
	text string
	err  error
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer configures the content renderer.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// WithPhasePrompts toggles printing phase system prompts.
func WithPhasePrompts(show bool) TextHandlerOption {
	return func(h *TextHandler) {
		h.ShowPrompts = show
	}
}

// WithTextHandlerSanitizer replaces the default utterance limits.
func WithTextHandlerSanitizer(s Sanitizer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Sanitizer = s
	}
}

// NewTextHandler creates a handler for standard text IO.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{
		Reader:      bufio.NewReader(r),
		Writer:      w,
		ShowPrompts: true,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *TextHandler) initPump() {
	h.startOnce.Do(func() {
		h.inputChan = make(chan inputResult)
		go h.pump()
	})
}

// pump reads lines in the background so Input can honour context cancellation.
func (h *TextHandler) pump() {
	for {
		text, err := h.Reader.ReadString('\n')
		if text != "" {
			h.inputChan <- inputResult{text: text}
		}
		if err != nil {
			if err != io.EOF {
				h.inputChan <- inputResult{err: err}
			}
			close(h.inputChan)
			return
		}
	}
}

func (h *TextHandler) Present(ctx context.Context, frame Frame) error {
	var md string
	switch frame.Kind {
	case FramePhase:
		if frame.Phase == nil {
			return nil
		}
		md = fmt.Sprintf("## %s\n", frame.Phase.Name)
		if h.ShowPrompts && frame.Phase.SystemPrompt != "" {
			md += "\n" + frame.Phase.SystemPrompt + "\n"
		}
	case FrameVerdict:
		if frame.Verdict == nil {
			return nil
		}
		md = verdictMarkdown(frame.Scenario, *frame.Verdict)
	case FrameProjection:
		if frame.Projection == nil || frame.Scenario == nil {
			return nil
		}
		md = tui.ProjectionMarkdown(frame.Scenario, *frame.Projection)
	case FrameEnded:
		if frame.State == nil {
			return nil
		}
		md = fmt.Sprintf("**Conversation ended** (%s) after %d turns.\n", frame.State.EndReason, frame.State.Turn)
	default:
		return nil
	}
	return h.write(md)
}

func (h *TextHandler) write(md string) error {
	output := md
	if h.Renderer != nil {
		if rendered, err := h.Renderer(md); err == nil {
			output = rendered
		}
	}
	_, err := fmt.Fprintln(h.Writer, strings.TrimSpace(output))
	return err
}

func verdictMarkdown(sc *domain.Scenario, v domain.TurnVerdict) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "_signal: %s_\n", v.Signal.Normalize())
	for _, id := range v.SatisfiedConditionIDs {
		desc := fmt.Sprintf("condition %d", id)
		if sc != nil {
			if c := sc.Condition(id); c != nil {
				desc = c.Description
			}
		}
		fmt.Fprintf(&sb, "- [x] %s\n", desc)
	}
	for _, flag := range v.RedFlags {
		fmt.Fprintf(&sb, "- **red flag:** %s\n", flag)
	}
	return sb.String()
}

func (h *TextHandler) Input(ctx context.Context) (Input, error) {
	h.initPump()

	for {
		select {
		case <-ctx.Done():
			return Input{}, ctx.Err()
		default:
			fmt.Fprint(h.Writer, "> ")
		}

		select {
		case <-ctx.Done():
			return Input{}, ctx.Err()
		case res, ok := <-h.inputChan:
			if !ok {
				return Input{}, io.EOF
			}
			if res.err != nil {
				return Input{}, res.err
			}
			clean, err := h.Sanitizer.Clean(res.text)
			if err != nil {
				fmt.Fprintf(h.Writer, "Error: %v. Please try again.\n", err)
				continue
			}
			if clean == "" {
				continue
			}
			return Input{Utterance: clean}, nil
		}
	}
}

func (h *TextHandler) SystemOutput(ctx context.Context, msg string) error {
	_, err := fmt.Fprintf(h.Writer, "\n[System] %s\n", msg)
	return err
}
