package format

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bytedance/sonic"
)

// Envelope is the shape of every scriptable command's output.
type Envelope struct {
	Data  any            `json:"data"`
	Meta  map[string]any `json:"meta,omitempty"`
	Hints []string       `json:"_hints,omitempty"`
}

// Texter is implemented by payloads that have a human-readable rendering.
type Texter interface {
	Text() string
}

var ErrNoText = errors.New("no text rendering for this output; use --format json or edn")

// Formats lists the accepted values of --format.
var Formats = []string{"json", "edn", "text"}

// Write writes v in the requested format.
//
// Supported formats:
// - json (default)
// - edn
// - text (only for payloads implementing Texter, directly or as Envelope.Data)
func Write(w io.Writer, v any, format string, pretty bool) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return WriteJSON(w, v, pretty)
	case "edn":
		return WriteEDN(w, v, pretty)
	case "text":
		return WriteText(w, v)
	default:
		return fmt.Errorf("unknown format: %s (want one of %s)", format, strings.Join(Formats, ", "))
	}
}

// WriteJSON writes strict JSON, one document per line unless pretty.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	var (
		b   []byte
		err error
	)
	if pretty {
		b, err = sonic.ConfigStd.MarshalIndent(v, "", "  ")
	} else {
		b, err = sonic.ConfigStd.Marshal(v)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func WriteText(w io.Writer, v any) error {
	if env, ok := v.(Envelope); ok {
		v = env.Data
	}
	t, ok := v.(Texter)
	if !ok {
		return ErrNoText
	}
	s := strings.TrimRight(t.Text(), "\n")
	_, err := fmt.Fprintln(w, s)
	return err
}
