package events

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tunnelward/tunnelward/internal/model"
)

// Journal appends events as JSON lines for offline inspection (`logs
// --events`). Malformed lines are skipped on read, never fatal.
type Journal struct {
	mu   sync.Mutex
	path string
}

// NewJournal creates a journal writing to path.
func NewJournal(path string) *Journal {
	return &Journal{path: path}
}

// Append writes one event as a single JSON line.
func (j *Journal) Append(evt model.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(j.path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	b, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	_, err = f.Write(append(b, '\n'))
	return err
}

// Query filters journal reads.
type Query struct {
	ProfileName string
	Type        model.EventType
	Since       time.Time
	Limit       int
}

// Read returns matching events in append order, keeping at most Limit of
// the newest when set.
func (j *Journal) Read(q Query) ([]model.Event, error) {
	f, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []model.Event
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var evt model.Event
		if err := json.Unmarshal([]byte(line), &evt); err != nil {
			continue
		}
		if !matches(evt, q) {
			continue
		}
		out = append(out, evt)
		if q.Limit > 0 && len(out) > q.Limit {
			out = out[len(out)-q.Limit:]
		}
	}
	return out, sc.Err()
}

func matches(evt model.Event, q Query) bool {
	if q.ProfileName != "" && evt.ProfileName != q.ProfileName {
		return false
	}
	if q.Type != "" && evt.Type != q.Type {
		return false
	}
	if !q.Since.IsZero() && evt.Timestamp.Before(q.Since) {
		return false
	}
	return true
}
