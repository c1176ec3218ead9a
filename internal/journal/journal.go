// Package journal keeps a JSONL history of what each sync run did to each issue.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"jira-sync/internal/suite"

	"github.com/rs/zerolog/log"
)

// Entry is one issue outcome of one suite run.
type Entry struct {
	Time       time.Time `json:"time"`
	Suite      string    `json:"suite"`
	Key        string    `json:"key"`
	Verdict    string    `json:"verdict,omitempty"`
	Status     string    `json:"status,omitempty"`
	Found      bool      `json:"found"`
	Transition string    `json:"transition,omitempty"`
	Comment    string    `json:"comment,omitempty"`
	ReportURL  string    `json:"reportUrl,omitempty"`
	Skipped    bool      `json:"skipped,omitempty"`
	FailedOp   string    `json:"failedOp,omitempty"`
	Error      string    `json:"error,omitempty"`
}

func (e Entry) identity() string {
	return fmt.Sprintf("%s|%s|%s", e.Time.UTC().Format(time.RFC3339Nano), e.Suite, e.Key)
}

// Journal is a thread-safe, chronological list of entries.
type Journal struct {
	mu      sync.RWMutex
	entries []Entry
}

// New creates an empty Journal.
func New() *Journal {
	return &Journal{}
}

// Record turns a suite summary into entries stamped with at. Skipped runs are
// recorded too, one entry per issue, so the history shows they were seen.
func (j *Journal) Record(at time.Time, s suite.Summary) {
	var entries []Entry
	if len(s.Results) > 0 {
		for _, r := range s.Results {
			entries = append(entries, Entry{
				Time:       at,
				Suite:      s.Suite,
				Key:        r.Key,
				Verdict:    r.Verdict,
				Status:     r.Status,
				Found:      r.Found,
				Transition: r.Transition,
				Comment:    string(r.Comment),
				ReportURL:  s.ReportURL,
				FailedOp:   r.FailedOp,
				Error:      r.Error,
			})
		}
	} else {
		for _, key := range s.Issues {
			entries = append(entries, Entry{Time: at, Suite: s.Suite, Key: key, Skipped: s.Skipped})
		}
	}
	j.Append(entries)
}

// Append adds entries, dropping duplicates and keeping chronological order.
func (j *Journal) Append(entries []Entry) {
	j.mu.Lock()
	defer j.mu.Unlock()

	existing := make(map[string]bool, len(j.entries))
	for _, e := range j.entries {
		existing[e.identity()] = true
	}

	added := 0
	for _, e := range entries {
		id := e.identity()
		if existing[id] {
			continue
		}
		existing[id] = true
		j.entries = append(j.entries, e)
		added++
	}
	if added == 0 {
		return
	}

	sort.SliceStable(j.entries, func(a, b int) bool {
		return j.entries[a].Time.Before(j.entries[b].Time)
	})
}

// Entries returns a copy of every entry.
func (j *Journal) Entries() []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]Entry(nil), j.entries...)
}

// ForIssue returns the entries of one issue, oldest first.
func (j *Journal) ForIssue(key string) []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var out []Entry
	for _, e := range j.entries {
		if e.Key == key {
			out = append(out, e)
		}
	}
	return out
}

// Load reads entries from a JSONL file. A missing file is not an error.
func (j *Journal) Load(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Skipping invalid JSON line in journal")
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading journal: %w", err)
	}

	log.Debug().Str("path", path).Int("count", len(entries)).Msg("Loaded journal")
	j.Append(entries)
	return nil
}

// Save writes every entry to path through a temp file and an atomic rename.
func (j *Journal) Save(path string) error {
	entries := j.Entries()
	if len(entries) == 0 {
		return nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp journal file: %w", err)
	}

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)
	for _, e := range entries {
		if err := encoder.Encode(e); err != nil {
			file.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("failed to encode entry: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename journal file: %w", err)
	}

	log.Info().Str("path", path).Int("count", len(entries)).Msg("Journal saved")
	return nil
}
