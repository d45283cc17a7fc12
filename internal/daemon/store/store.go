package store

import (
	"sort"
	"strings"
	"sync"

	"github.com/petekp/claude-hud-sub008/internal/daemon/reducer"
	"github.com/petekp/claude-hud-sub008/pkg/models"
)

// Store is the in-memory state of the daemon. Reads take the read lock and
// return copies, so queries never wait on the ingest queue, only on the
// short critical section of a single Apply.
type Store struct {
	mu        sync.RWMutex
	state     *reducer.State
	tmux      TmuxSnapshot
	terminals TerminalSnapshot
	lastSeq   int64

	subscribers map[chan Update]struct{}
}

// New creates a new Store instance.
func New(opts reducer.Options) *Store {
	return &Store{
		state:       reducer.New(opts),
		terminals:   TerminalSnapshot{Owners: map[string]models.TerminalOwner{}, TTYs: map[int]string{}},
		subscribers: make(map[chan Update]struct{}),
	}
}

// Apply folds one logged event into the state. seq is the event's log
// sequence number; zero leaves LastSeq untouched.
func (s *Store) Apply(seq int64, e models.Event) reducer.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.state.Apply(e)
	if seq > s.lastSeq {
		s.lastSeq = seq
	}
	if out.Applied {
		s.broadcast(Update{Type: UpdateSessions, Source: "ingest", Payload: e.Key()})
	}
	return out
}

// ApplyUpdate stores a collector snapshot and notifies subscribers.
func (s *Store) ApplyUpdate(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch u.Type {
	case UpdateTmux:
		if snap, ok := u.Payload.(TmuxSnapshot); ok {
			if snap.Err != "" {
				// keep the last good view, record the failure
				s.tmux.Err = snap.Err
			} else {
				s.tmux = snap
			}
		}
	case UpdateTerminals:
		if snap, ok := u.Payload.(TerminalSnapshot); ok {
			s.terminals = snap
		}
	}
	s.broadcast(u)
}

func (s *Store) broadcast(u Update) {
	for ch := range s.subscribers {
		select {
		case ch <- u:
		default:
			// Non-blocking send to prevent slow subscribers from stalling ingest
		}
	}
}

// Subscribe creates a new subscription channel for state updates.
func (s *Store) Subscribe() chan Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Update, 100)
	s.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Store) Unsubscribe(ch chan Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscribers, ch)
	close(ch)
}

// Sessions returns all records sorted by key.
func (s *Store) Sessions() []models.SessionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionsLocked()
}

func (s *Store) sessionsLocked() []models.SessionRecord {
	out := make([]models.SessionRecord, 0, len(s.state.Sessions))
	for _, rec := range s.state.Sessions {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SessionID != out[j].SessionID {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].PID < out[j].PID
	})
	return out
}

// Shells returns the shell table sorted by pid. pid > 0 selects one shell.
func (s *Store) Shells(pid int) []models.ShellRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shellsLocked(pid)
}

func (s *Store) shellsLocked(pid int) []models.ShellRecord {
	out := make([]models.ShellRecord, 0, len(s.state.Shells))
	for _, sh := range s.state.Shells {
		if pid > 0 && sh.PID != pid {
			continue
		}
		out = append(out, sh)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out
}

// Activity returns the newest entries first, optionally limited to one
// project (and anything beneath it).
func (s *Store) Activity(projectPath string, limit int) []models.ActivityEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.ActivityEntry{}
	for i := len(s.state.Activity) - 1; i >= 0; i-- {
		entry := s.state.Activity[i]
		if projectPath != "" && !underPath(entry.ProjectPath, projectPath) {
			continue
		}
		out = append(out, entry)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func underPath(path, root string) bool {
	root = strings.TrimSuffix(root, "/")
	return path == root || strings.HasPrefix(path, root+"/")
}

// Tmux returns the last tmux snapshot.
func (s *Store) Tmux() TmuxSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tmux
}

// Terminals returns the last terminal ownership snapshot.
func (s *Store) Terminals() TerminalSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyTerminals(s.terminals)
}

// LastSeq is the highest log sequence applied.
func (s *Store) LastSeq() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeq
}

// Snapshot copies everything routing and queries need under one read lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Sessions:  s.sessionsLocked(),
		Shells:    s.shellsLocked(0),
		Tmux:      s.tmux,
		Terminals: copyTerminals(s.terminals),
		LastSeq:   s.lastSeq,
	}
}

func copyTerminals(t TerminalSnapshot) TerminalSnapshot {
	owners := make(map[string]models.TerminalOwner, len(t.Owners))
	for k, v := range t.Owners {
		owners[k] = v
	}
	ttys := make(map[int]string, len(t.TTYs))
	for k, v := range t.TTYs {
		ttys[k] = v
	}
	return TerminalSnapshot{Owners: owners, TTYs: ttys, CapturedAt: t.CapturedAt}
}
