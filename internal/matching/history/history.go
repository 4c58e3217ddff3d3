// Package history is the MatchHistory append-only audit store (spec §3),
// adapted from the teacher's internal/eventlog.EventStore: same mechanics
// (mutex-guarded, dedup by identity, sorted by timestamp, atomic
// rename-on-save JSONL snapshotting), new record shape and partition key
// (openShiftId instead of Jira board id).
package history

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"mcs-mcp/internal/matching/domain"
)

// Store is an append-only MatchHistory store, partitioned by OpenShiftID.
// Writes are best-effort per spec §7 ("MatchHistory writes are best-effort
// and never fail the primary operation"): Append never returns an error the
// Matcher is expected to propagate; callers that need durability call Save
// explicitly and handle that error themselves.
type Store struct {
	mu   sync.RWMutex
	rows map[domain.OpenShiftID][]domain.MatchHistory
}

// NewStore returns an empty history Store.
func NewStore() *Store {
	return &Store{rows: make(map[domain.OpenShiftID][]domain.MatchHistory)}
}

// Append records a new MatchHistory row, deduplicating by (OpenShiftID,
// ProposalID, Outcome, RecordedAt) the way EventStore.Append dedupes by
// issue identity. Logged, not returned, on internal failure — the caller's
// primary operation must not fail because of this (spec §7).
func (s *Store) Append(ctx context.Context, row domain.MatchHistory) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.rows[row.OpenShiftID]
	key := identity(row)
	for _, existing := range rows {
		if identity(existing) == key {
			return
		}
	}

	rows = append(rows, row)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].RecordedAt.Before(rows[j].RecordedAt)
	})
	s.rows[row.OpenShiftID] = rows

	log.Info().
		Str("shift_id", row.OpenShiftID.String()).
		Str("outcome", string(row.Outcome)).
		Int("attempt_number", row.AttemptNumber).
		Msg("match history recorded")
}

// ForShift returns every history row for one open shift, oldest first.
func (s *Store) ForShift(_ context.Context, shiftID domain.OpenShiftID) []domain.MatchHistory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.MatchHistory, len(s.rows[shiftID]))
	copy(out, s.rows[shiftID])
	return out
}

// All returns every history row across every open shift, for callers (the
// forecast package) that need a cross-shift sample rather than one shift's
// own attempts.
func (s *Store) All(_ context.Context) []domain.MatchHistory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.MatchHistory, 0)
	for _, rows := range s.rows {
		out = append(out, rows...)
	}
	return out
}

// LatestAttemptNumber returns the highest AttemptNumber recorded for shiftID,
// or 0 if none, so the Matcher can derive monotonically increasing attempt
// numbers across re-matches (spec §5: "attemptNumber increases monotonically").
func (s *Store) LatestAttemptNumber(_ context.Context, shiftID domain.OpenShiftID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	max := 0
	for _, r := range s.rows[shiftID] {
		if r.AttemptNumber > max {
			max = r.AttemptNumber
		}
	}
	return max
}

// Save persists every row to a JSONL snapshot under dir, one file per open
// shift, using the teacher's write-to-temp-then-rename pattern
// (EventStore.Save) for crash safety.
func (s *Store) Save(dir string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for shiftID, rows := range s.rows {
		if len(rows) == 0 {
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("%s.jsonl", shiftID))
		tmpPath := path + ".tmp"

		file, err := os.Create(tmpPath)
		if err != nil {
			return fmt.Errorf("create temp history file: %w", err)
		}

		w := bufio.NewWriter(file)
		enc := json.NewEncoder(w)
		for _, r := range rows {
			if err := enc.Encode(r); err != nil {
				file.Close()
				os.Remove(tmpPath)
				return fmt.Errorf("encode history row: %w", err)
			}
		}
		if err := w.Flush(); err != nil {
			file.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("flush history file: %w", err)
		}
		if err := file.Close(); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("close history file: %w", err)
		}
		if err := os.Rename(tmpPath, path); err != nil {
			return fmt.Errorf("rename history file: %w", err)
		}
	}
	return nil
}

// Load restores history rows for one open shift from its JSONL snapshot.
func (s *Store) Load(dir string, shiftID domain.OpenShiftID) error {
	path := filepath.Join(dir, fmt.Sprintf("%s.jsonl", shiftID))
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open history file: %w", err)
	}
	defer file.Close()

	var rows []domain.MatchHistory
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var r domain.MatchHistory
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			log.Warn().Err(err).Str("shift_id", shiftID.String()).Msg("skipping invalid match history line")
			continue
		}
		rows = append(rows, r)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan history file: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.rows[shiftID] = append(s.rows[shiftID], r)
	}
	sort.SliceStable(s.rows[shiftID], func(i, j int) bool {
		return s.rows[shiftID][i].RecordedAt.Before(s.rows[shiftID][j].RecordedAt)
	})
	return nil
}

// LoadAll restores every *.jsonl snapshot file under dir, deriving each
// shift's ID from its filename, for process startup.
func (s *Store) LoadAll(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read history directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		idStr := strings.TrimSuffix(entry.Name(), ".jsonl")
		shiftID, err := uuid.Parse(idStr)
		if err != nil {
			log.Warn().Str("file", entry.Name()).Msg("skipping history snapshot with unparseable filename")
			continue
		}
		if err := s.Load(dir, shiftID); err != nil {
			return err
		}
	}
	return nil
}

func identity(r domain.MatchHistory) string {
	proposal := ""
	if r.ProposalID != nil {
		proposal = r.ProposalID.String()
	}
	return fmt.Sprintf("%s|%s|%s|%d", r.OpenShiftID, proposal, r.Outcome, r.RecordedAt.UnixNano())
}
