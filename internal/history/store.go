package history

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Entry is one persisted evaluation.
type Entry struct {
	ID     string    `json:"id"`
	Expr   string    `json:"expr"`
	Result string    `json:"result"`
	TS     time.Time `json:"ts"`
}

type Store struct {
	Path string
}

func NewStore(path string) *Store {
	return &Store{Path: path}
}

func (s *Store) ensureDir() error {
	if s == nil || strings.TrimSpace(s.Path) == "" {
		return errors.New("history store path is empty")
	}
	return os.MkdirAll(filepath.Dir(s.Path), 0o755)
}

// Append writes one entry; blank expressions are ignored.
func (s *Store) Append(e Entry) (Entry, error) {
	if s == nil {
		return e, errors.New("history store is nil")
	}
	e.Expr = strings.TrimSpace(e.Expr)
	if e.Expr == "" {
		return e, nil
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.TS.IsZero() {
		e.TS = time.Now()
	}
	if err := s.ensureDir(); err != nil {
		return e, err
	}
	f, err := os.OpenFile(s.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return e, err
	}
	defer f.Close()

	data, err := json.Marshal(e)
	if err != nil {
		return e, err
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return e, err
	}
	return e, nil
}

// Load returns entries oldest first, keeping at most the newest limit (limit <= 0 keeps all).
func (s *Store) Load(limit int) ([]Entry, error) {
	if s == nil {
		return nil, errors.New("history store is nil")
	}
	if strings.TrimSpace(s.Path) == "" {
		return nil, errors.New("history store path is empty")
	}
	f, err := os.Open(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	var out []Entry
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			continue
		}
		if strings.TrimSpace(e.Expr) == "" {
			continue
		}
		out = append(out, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// Clear truncates the history file.
func (s *Store) Clear() error {
	if s == nil {
		return errors.New("history store is nil")
	}
	if err := s.ensureDir(); err != nil {
		return err
	}
	return os.WriteFile(s.Path, nil, 0o644)
}
