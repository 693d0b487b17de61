package pkg

import (
	"io"

	"go.uber.org/multierr"
)

// CombinedWriter duplicates writes across all given writers, e.g. stdout
// plus a rotating log file. Errors from individual writers are combined,
// and a failing writer does not stop the others from receiving the bytes.
type CombinedWriter struct {
	writers []io.Writer
}

func NewCombinedWriter(writers ...io.Writer) *CombinedWriter {
	return &CombinedWriter{writers: writers}
}

func (cw *CombinedWriter) Write(p []byte) (n int, err error) {
	for _, w := range cw.writers {
		written, werr := w.Write(p)
		if werr != nil {
			err = multierr.Append(err, werr)
			continue
		}
		if written > n {
			n = written
		}
	}
	return n, err
}
