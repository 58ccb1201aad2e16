// Package store persists engine state (issues, contributor snapshots) as a
// single JSON document with atomic writes. State is small; every operation
// reads and rewrites the file under a mutex, so a crashed sweep can always
// resume from the last committed transition.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/cookiewatch/cookiewatch/internal/model"
)

// Version is bumped when the state schema changes; mismatched state files
// are discarded rather than misread.
const Version = 1

// state is the on-disk document.
type state struct {
	Version      int                          `json:"version"`
	LastSweepAt  time.Time                    `json:"lastSweepAt,omitempty"`
	Issues       map[string]model.Issue       `json:"issues"`
	Contributors map[string]model.Contributor `json:"contributors"`
}

func emptyState() state {
	return state{
		Version:      Version,
		Issues:       make(map[string]model.Issue),
		Contributors: make(map[string]model.Contributor),
	}
}

// Store manages persistence of engine state.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a store at the default state path.
func NewStore() (*Store, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(cacheDir, "cookiewatch")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	return &Store{path: filepath.Join(dir, "state.json")}, nil
}

// NewStoreWithPath creates a store at the given path (for testing).
func NewStoreWithPath(path string) *Store {
	return &Store{path: path}
}

// Path returns the location of the state file.
func (s *Store) Path() string {
	return s.path
}

// UpsertIssue writes one issue record.
func (s *Store) UpsertIssue(issue model.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.read()
	st.Issues[issueKey(issue.ID)] = issue
	return s.write(st)
}

// Issue returns the stored record for an issue ID.
func (s *Store) Issue(id int64) (model.Issue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.read()
	issue, ok := st.Issues[issueKey(id)]
	return issue, ok
}

// Issues returns all tracked issues ordered by repo then number.
func (s *Store) Issues() []model.Issue {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.read()
	issues := make([]model.Issue, 0, len(st.Issues))
	for _, issue := range st.Issues {
		issues = append(issues, issue)
	}
	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Repo != issues[j].Repo {
			return issues[i].Repo < issues[j].Repo
		}
		return issues[i].Number < issues[j].Number
	})
	return issues
}

// PutContributor writes one contributor trust snapshot.
func (s *Store) PutContributor(c model.Contributor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.read()
	st.Contributors[c.Username] = c
	return s.write(st)
}

// Contributor returns the stored snapshot for a username.
func (s *Store) Contributor(username string) (model.Contributor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.read()
	c, ok := st.Contributors[username]
	return c, ok
}

// Contributors returns all stored contributor snapshots ordered by username.
func (s *Store) Contributors() []model.Contributor {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.read()
	contributors := make([]model.Contributor, 0, len(st.Contributors))
	for _, c := range st.Contributors {
		contributors = append(contributors, c)
	}
	sort.Slice(contributors, func(i, j int) bool {
		return contributors[i].Username < contributors[j].Username
	})
	return contributors
}

// SetLastSweep records when the latest sweep completed.
func (s *Store) SetLastSweep(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.read()
	st.LastSweepAt = t
	return s.write(st)
}

// LastSweep returns when the latest sweep completed, or the zero time.
func (s *Store) LastSweep() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.read().LastSweepAt
}

// read loads the state file, returning a fresh document when the file is
// missing, malformed, or from another schema version.
func (s *Store) read() state {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return emptyState()
	}

	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return emptyState()
	}
	if st.Version != Version {
		return emptyState()
	}
	if st.Issues == nil {
		st.Issues = make(map[string]model.Issue)
	}
	if st.Contributors == nil {
		st.Contributors = make(map[string]model.Contributor)
	}
	return st
}

// write persists the state document atomically.
func (s *Store) write(st state) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func issueKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
