package supervisor

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// logPath returns the capture file path for one service stream.
func logPath(dir, id, stream string) string {
	return filepath.Join(dir, fmt.Sprintf("%s.%s.log", id, stream))
}

// newLogWriter creates a file writer for capturing a service stream.
// An empty path or a creation failure degrades to io.Discard.
func newLogWriter(path string) io.Writer {
	if path == "" {
		return io.Discard
	}
	f, err := os.Create(path)
	if err != nil {
		slog.Warn("cannot create log file", "path", path, "error", err)
		return io.Discard
	}
	return f
}
