package history

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStoreAppendAndLoad(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	path := filepath.Join(tmp, "history.jsonl")
	s := NewStore(path)

	if got, err := s.Load(0); err != nil || len(got) != 0 {
		t.Fatalf("Load on missing file: got=%v err=%v", got, err)
	}

	if _, err := s.Append(Entry{Expr: "   "}); err != nil {
		t.Fatalf("Append whitespace: %v", err)
	}
	e, err := s.Append(Entry{Expr: "1+1", Result: "2"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if e.ID == "" || e.TS.IsZero() {
		t.Fatalf("Append should stamp id and ts, got %+v", e)
	}

	// Inject garbage line; loader should skip it.
	if err := os.WriteFile(path, []byte(strings.Join([]string{
		`{"id":"a","expr":"1+1","result":"2","ts":"2025-01-01T00:00:00Z"}`,
		`{not json}`,
		`{"id":"b","expr":"","result":"","ts":"2025-01-01T00:00:00Z"}`,
		`{"id":"c","expr":"2*3","result":"6","ts":"2025-01-01T00:00:01Z"}`,
		"",
	}, "\n")), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := s.Load(0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"a", "c"}
	if len(got) != len(want) {
		t.Fatalf("Load len=%d want=%d: %#v", len(got), len(want), got)
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("Load[%d].ID=%q want=%q", i, got[i].ID, want[i])
		}
	}

	limited, err := s.Load(1)
	if err != nil {
		t.Fatalf("Load(1): %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "c" {
		t.Fatalf("Load(1) should keep the newest entry, got %#v", limited)
	}
}

func TestStoreClear(t *testing.T) {
	t.Parallel()

	s := NewStore(filepath.Join(t.TempDir(), "h", "history.jsonl"))
	if _, err := s.Append(Entry{Expr: "3", Result: "3"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	got, err := s.Load(0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty history after Clear, got %#v", got)
	}
}

func TestStoreAppendErrors(t *testing.T) {
	t.Parallel()

	var s *Store
	if _, err := s.Append(Entry{Expr: "hi"}); err == nil {
		t.Fatalf("expected error for nil store")
	}

	s = &Store{}
	if _, err := s.Append(Entry{Expr: "hi"}); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
