package stream

import (
	"io"
)

// WriteFrame writes payload as a single "data: <payload>\n\n" frame. The
// payload must not contain newlines; encoding/json output never does.
func WriteFrame(w io.Writer, payload []byte) error {
	buf := make([]byte, 0, len(payload)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, payload...)
	buf = append(buf, '\n', '\n')
	_, err := w.Write(buf)
	return err
}

// WriteComment writes ": <text>\n\n", which clients ignore.
func WriteComment(w io.Writer, text string) error {
	_, err := io.WriteString(w, ": "+text+"\n\n")
	return err
}
