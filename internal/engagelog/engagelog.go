// Package engagelog appends engagement-loop activity to a CSV file.
package engagelog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/ibeckermayer/xpilot/internal/types"
)

var header = []string{"timestamp", "session_id", "action", "scroll_count", "like_count", "post_link", "comment", "comment_count"}

// Writer is an append-only CSV log. Each row is flushed as it is written.
type Writer struct {
	mu   sync.Mutex
	f    *os.File
	w    *csv.Writer
	path string
}

// Open opens or creates the log at path, writing the header to a new file.
func Open(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create engagement log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open engagement log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	lw := &Writer{f: f, w: csv.NewWriter(f), path: path}
	if info.Size() == 0 {
		if err := lw.write(header); err != nil {
			f.Close()
			return nil, err
		}
	}
	return lw, nil
}

// Path returns the file being written.
func (l *Writer) Path() string { return l.path }

// Append writes rec as one row.
func (l *Writer) Append(rec types.EngagementRecord) error {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return l.write([]string{
		ts.UTC().Format(time.RFC3339),
		rec.SessionID,
		rec.Action,
		strconv.Itoa(rec.ScrollCount),
		strconv.Itoa(rec.LikeCount),
		rec.PostLink,
		rec.Comment,
		strconv.Itoa(rec.CommentCount),
	})
}

func (l *Writer) write(row []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.w.Write(row); err != nil {
		return fmt.Errorf("failed to write engagement log row: %w", err)
	}
	l.w.Flush()
	return l.w.Error()
}

// Close flushes and closes the file.
func (l *Writer) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		l.f.Close()
		return err
	}
	return l.f.Close()
}

// Read returns every record in the log at path, skipping the header.
func Read(path string) ([]types.EngagementRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse engagement log: %w", err)
	}
	var out []types.EngagementRecord
	for i, row := range rows {
		if i == 0 || len(row) != len(header) {
			continue
		}
		ts, _ := time.Parse(time.RFC3339, row[0])
		scrolls, _ := strconv.Atoi(row[3])
		likes, _ := strconv.Atoi(row[4])
		comments, _ := strconv.Atoi(row[7])
		out = append(out, types.EngagementRecord{
			Timestamp:    ts,
			SessionID:    row[1],
			Action:       row[2],
			ScrollCount:  scrolls,
			LikeCount:    likes,
			PostLink:     row[5],
			Comment:      row[6],
			CommentCount: comments,
		})
	}
	return out, nil
}
