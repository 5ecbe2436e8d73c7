package ui

import "strings"

// lineWriter buffers partial writes and invokes print once per complete
// line (newline included), flushing whatever remains on Close.
type lineWriter struct {
	print func(string)
	buf   strings.Builder
}

// newLineWriter returns a writer that calls print for every line written
// to it, used to turn a subprocess's raw stdout/stderr stream into
// line-buffered status updates.
func newLineWriter(print func(string)) *lineWriter {
	return &lineWriter{print: print}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	for _, b := range p {
		w.buf.WriteByte(b)
		if b == '\n' {
			w.print(w.buf.String())
			w.buf.Reset()
		}
	}
	return len(p), nil
}

// Close flushes any buffered partial line, appending a newline.
func (w *lineWriter) Close() error {
	if w.buf.Len() > 0 {
		w.print(w.buf.String() + "\n")
		w.buf.Reset()
	}
	return nil
}
