package stream

import (
	"encoding/json"
	"fmt"
	"io"
)

// MarshalSSE frames the event for a Server-Sent Events stream:
// "event: <kind>\ndata: <json>\n\n".
func (e *Event) MarshalSSE() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", e.Kind, data)), nil
}

// Writer emits SSE frames to an io.Writer, flushing after each frame when
// the writer supports it.
type Writer struct {
	w io.Writer
}

// NewWriter creates an SSE writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteEvent writes one framed event.
func (w *Writer) WriteEvent(e *Event) error {
	frame, err := e.MarshalSSE()
	if err != nil {
		return err
	}
	if _, err := w.w.Write(frame); err != nil {
		return err
	}
	w.flush()
	return nil
}

// WriteComment writes an SSE comment line, useful as a transport keepalive
// that clients ignore.
func (w *Writer) WriteComment(comment string) error {
	if _, err := fmt.Fprintf(w.w, ": %s\n\n", comment); err != nil {
		return err
	}
	w.flush()
	return nil
}

func (w *Writer) flush() {
	if f, ok := w.w.(interface{ Flush() }); ok {
		f.Flush()
	}
}
