package localstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"prediction-arena/internal/arena"
)

// Store persists the two reload-surviving keys: the user's team assignment
// and the match anchor. Absence of the anchor means "no active match".
type Store interface {
	Team() (arena.Team, bool)
	SetTeam(team arena.Team) error
	ClearTeam() error
	MatchStart() (time.Time, bool)
	SetMatchStart(at time.Time) error
	ClearMatchStart() error
}

type fileState struct {
	Team         string `json:"team,omitempty"`
	MatchStartMS int64  `json:"match_start_ms,omitempty"`
}

// FileStore keeps state in a small JSON file, written through on every
// mutation.
type FileStore struct {
	mu    sync.Mutex
	path  string
	state fileState
}

// Open loads (or initialises) the state file at path. An empty path
// resolves to the OS user config directory.
func Open(path string) (*FileStore, error) {
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolve state dir: %w", err)
		}
		path = filepath.Join(dir, "arena", "state.json")
	}

	s := &FileStore{path: path}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}
	if err := json.Unmarshal(raw, &s.state); err != nil {
		// A corrupt state file is equivalent to no active match.
		s.state = fileState{}
	}
	return s, nil
}

func (s *FileStore) Team() (arena.Team, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	team := arena.Team(s.state.Team)
	return team, team.Valid()
}

func (s *FileStore) SetTeam(team arena.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Team = string(team)
	return s.flushLocked()
}

func (s *FileStore) ClearTeam() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Team = ""
	return s.flushLocked()
}

func (s *FileStore) MatchStart() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.MatchStartMS == 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(s.state.MatchStartMS), true
}

func (s *FileStore) SetMatchStart(at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.MatchStartMS = at.UnixMilli()
	return s.flushLocked()
}

func (s *FileStore) ClearMatchStart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.MatchStartMS = 0
	return s.flushLocked()
}

func (s *FileStore) flushLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	raw, err := json.Marshal(s.state)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)

// MemStore is an in-process Store for tests and ephemeral sessions.
type MemStore struct {
	mu         sync.Mutex
	team       arena.Team
	matchStart time.Time
}

func NewMemStore() *MemStore { return &MemStore{} }

func (s *MemStore) Team() (arena.Team, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.team, s.team.Valid()
}

func (s *MemStore) SetTeam(team arena.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.team = team
	return nil
}

func (s *MemStore) ClearTeam() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.team = ""
	return nil
}

func (s *MemStore) MatchStart() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matchStart, !s.matchStart.IsZero()
}

func (s *MemStore) SetMatchStart(at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matchStart = at
	return nil
}

func (s *MemStore) ClearMatchStart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matchStart = time.Time{}
	return nil
}

var _ Store = (*MemStore)(nil)
