package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"jira-sync/internal/comment"
	"jira-sync/internal/suite"
)

func TestJournal_Persistence(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "history", "journal.jsonl")
	at := time.Now().Truncate(time.Second)

	j1 := New()
	j1.Record(at, suite.Summary{
		Suite:     "example.com/shop",
		Issues:    []string{"SHOP-1", "SHOP-2"},
		ReportURL: "http://reports/abc.html",
		Results: []suite.Result{
			{Key: "SHOP-1", Verdict: "SUCCESS", Status: "Open", Found: true, Transition: "Resolve Issue", Comment: comment.Inserted},
			{Key: "SHOP-2", FailedOp: "get-status", Error: "boom"},
		},
	})
	if err := j1.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind")
	}

	j2 := New()
	if err := j2.Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	got := j2.ForIssue("SHOP-1")
	if len(got) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(got))
	}
	if got[0].Transition != "Resolve Issue" || got[0].Comment != "inserted" || got[0].ReportURL != "http://reports/abc.html" {
		t.Errorf("entry = %+v", got[0])
	}
	if !got[0].Time.Equal(at) {
		t.Errorf("time = %v, want %v", got[0].Time, at)
	}
	if e := j2.ForIssue("SHOP-2"); len(e) != 1 || e[0].FailedOp != "get-status" {
		t.Errorf("failure entry = %+v", e)
	}
}

func TestJournal_LoadMissingFile(t *testing.T) {
	j := New()
	if err := j.Load(filepath.Join(t.TempDir(), "nope.jsonl")); err != nil {
		t.Errorf("Load of missing file should succeed, got %v", err)
	}
	if len(j.Entries()) != 0 {
		t.Errorf("expected empty journal")
	}
}

func TestJournal_LoadSkipsInvalidLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	data := `{"time":"2026-01-02T10:00:00Z","suite":"s","key":"A-1","found":true}
not json
{"time":"2026-01-01T10:00:00Z","suite":"s","key":"A-2","found":true}
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	j := New()
	if err := j.Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	entries := j.Entries()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Key != "A-2" {
		t.Errorf("entries should be chronological, first = %s", entries[0].Key)
	}
}

func TestJournal_AppendDeduplicates(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := suite.Summary{Suite: "s", Issues: []string{"A-1"}, Skipped: true}

	j := New()
	j.Record(at, s)
	j.Record(at, s)
	j.Record(at.Add(time.Minute), s)

	entries := j.Entries()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if !entries[0].Skipped {
		t.Errorf("skipped run should be recorded as skipped")
	}
}

func TestJournal_SaveEmptyWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	if err := New().Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("empty journal should not create a file")
	}
}
