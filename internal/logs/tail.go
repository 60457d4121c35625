// Package logs reads back the daemon's log file for the CLI and IPC surface.
package logs

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"scribe/internal/config"
)

// FileName is the log file the daemon writes in the configured log directory.
const FileName = "scribe.log"

// DefaultPath returns the daemon log path for the given config.
func DefaultPath(cfg *config.Config) string {
	if cfg == nil || cfg.Paths.LogDir == "" {
		return ""
	}
	return filepath.Join(cfg.Paths.LogDir, FileName)
}

// TailOptions controls a single Tail call. A negative Offset means "start
// from the end of the file": return the last Limit lines and the offset to
// resume from. A non-negative Offset resumes an earlier tail.
type TailOptions struct {
	Offset int64
	Limit  int
}

// TailResult carries the lines read and the offset for the next call.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads log lines according to opts. A missing file yields an empty
// result so callers can poll before the daemon has logged anything.
func Tail(path string, opts TailOptions) (TailResult, error) {
	result := TailResult{Offset: opts.Offset}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			result.Offset = 0
			return result, nil
		}
		return result, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return result, fmt.Errorf("log path %q is a directory", path)
	}

	if opts.Offset < 0 {
		lines, offset, err := readTail(path, opts.Limit)
		if err != nil {
			return result, err
		}
		return TailResult{Lines: lines, Offset: offset}, nil
	}

	offset := opts.Offset
	if offset > info.Size() {
		// The file was rotated or truncated under us; start over.
		offset = 0
	}
	lines, newOffset, err := readFrom(path, offset, opts.Limit)
	if err != nil {
		return result, err
	}
	return TailResult{Lines: lines, Offset: newOffset}, nil
}

// readTail returns the last limit lines of the file and its end offset.
func readTail(path string, limit int) ([]string, int64, error) {
	lines, size, err := readFrom(path, 0, 0)
	if err != nil {
		return nil, 0, err
	}
	if limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return lines, size, nil
}

// readFrom scans lines starting at offset. limit caps the number of lines
// returned; zero means unlimited. The returned offset points past the last
// line consumed.
func readFrom(path string, offset int64, limit int) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReaderSize(file, 64*1024)
	var lines []string
	consumed := offset
	for {
		line, err := reader.ReadString('\n')
		if err == nil {
			consumed += int64(len(line))
			lines = append(lines, line[:len(line)-1])
			if limit > 0 && len(lines) >= limit {
				break
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			// A partial final line stays unread until the writer finishes it.
			break
		}
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}

	return lines, consumed, nil
}
