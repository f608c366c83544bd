package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Response is the success envelope for JSON output.
type Response struct {
	OK      bool   `json:"ok" yaml:"ok"`
	Data    any    `json:"data,omitempty" yaml:"data,omitempty"`
	Summary string `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// ErrorResponse is the error envelope for JSON output.
type ErrorResponse struct {
	OK    bool   `json:"ok" yaml:"ok"`
	Error string `json:"error" yaml:"error"`
	Code  string `json:"code" yaml:"code"`
	Hint  string `json:"hint,omitempty" yaml:"hint,omitempty"`
}

// Format specifies the output format.
type Format int

const (
	FormatAuto  Format = iota // Auto-detect: TTY → text, non-TTY → JSON
	FormatJSON                // JSON envelope
	FormatYAML                // YAML envelope
	FormatQuiet               // Data only, no envelope
)

// Options controls output behavior.
type Options struct {
	Format Format
	Writer io.Writer
}

// Writer handles all output formatting.
type Writer struct {
	opts Options
}

// New creates a new output writer.
func New(opts Options) *Writer {
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}
	return &Writer{opts: opts}
}

// ResponseOption customizes a success response.
type ResponseOption func(*Response)

// WithSummary sets a human-readable summary line.
func WithSummary(summary string) ResponseOption {
	return func(r *Response) { r.Summary = summary }
}

// OK outputs a success response.
func (w *Writer) OK(data any, opts ...ResponseOption) error {
	resp := &Response{OK: true, Data: data}
	for _, opt := range opts {
		opt(resp)
	}

	switch w.resolveFormat() {
	case FormatQuiet:
		return w.writeJSON(resp.Data)
	case FormatYAML:
		return w.writeYAML(resp)
	case FormatJSON:
		return w.writeJSON(resp)
	default:
		if resp.Summary != "" {
			fmt.Fprintln(w.opts.Writer, resp.Summary)
		}
		return w.writeJSON(resp.Data)
	}
}

// Err outputs an error response.
func (w *Writer) Err(err error) error {
	e := AsError(err)
	resp := &ErrorResponse{
		OK:    false,
		Error: e.Message,
		Code:  e.Code,
		Hint:  e.Hint,
	}

	switch w.resolveFormat() {
	case FormatYAML:
		return w.writeYAML(resp)
	case FormatJSON, FormatQuiet:
		return w.writeJSON(resp)
	default:
		fmt.Fprintf(os.Stderr, "Error: %s\n", e.Message)
		if e.Hint != "" {
			fmt.Fprintln(os.Stderr, e.Hint)
		}
		return nil
	}
}

// resolveFormat maps FormatAuto to a concrete format based on whether
// stdout is a terminal.
func (w *Writer) resolveFormat() Format {
	if w.opts.Format != FormatAuto {
		return w.opts.Format
	}
	if f, ok := w.opts.Writer.(*os.File); ok {
		if fi, err := f.Stat(); err == nil && (fi.Mode()&os.ModeCharDevice) != 0 {
			return FormatAuto
		}
	}
	return FormatJSON
}

func (w *Writer) writeJSON(v any) error {
	enc := json.NewEncoder(w.opts.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (w *Writer) writeYAML(v any) error {
	enc := yaml.NewEncoder(w.opts.Writer)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(v)
}
