package eventlog

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
)

// FileSink appends one line per record to a text file.
type FileSink struct {
	*queue
}

// NewFileSink opens path for appending, creating it if needed.
func NewFileSink(path string, buffer int, logger *slog.Logger) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log %s: %w", path, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	w := &fileWriter{f: f, buf: bufio.NewWriter(f)}
	return &FileSink{queue: newQueue("file", buffer, w, logger)}, nil
}

type fileWriter struct {
	f   *os.File
	buf *bufio.Writer
}

func (w *fileWriter) writeBatch(events []string) error {
	for _, event := range events {
		if _, err := w.buf.WriteString(event); err != nil {
			return err
		}
		if err := w.buf.WriteByte('\n'); err != nil {
			return err
		}
	}
	return w.buf.Flush()
}

func (w *fileWriter) close() error {
	if err := w.buf.Flush(); err != nil {
		_ = w.f.Close()
		return err
	}
	return w.f.Close()
}
