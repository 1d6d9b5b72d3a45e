package server

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tmbasic-lang/tmbasic-sub000/store"
)

// program is a server-side reference to a compiled artifact.
type program struct {
	id       string
	artifact *store.Artifact
	created  time.Time
	lastUsed time.Time
}

// ProgramStore maps opaque program IDs to compiled artifacts so that a
// client can compile once and run many times. Artifacts with the same
// source hash share an ID.
type ProgramStore struct {
	mu       sync.Mutex
	programs map[string]*program
	byHash   map[string]string
	nextID   atomic.Uint64
}

// NewProgramStore creates an empty program store.
func NewProgramStore() *ProgramStore {
	return &ProgramStore{
		programs: make(map[string]*program),
		byHash:   make(map[string]string),
	}
}

// Add registers a and returns its program ID.
func (s *ProgramStore) Add(a *store.Artifact) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if id, ok := s.byHash[a.SourceHash]; ok {
		if p, ok := s.programs[id]; ok {
			p.lastUsed = now
			return id
		}
	}

	id := fmt.Sprintf("p-%d", s.nextID.Add(1))
	s.programs[id] = &program{id: id, artifact: a, created: now, lastUsed: now}
	if a.SourceHash != "" {
		s.byHash[a.SourceHash] = id
	}
	return id
}

// Lookup retrieves the artifact for a program ID.
func (s *ProgramStore) Lookup(id string) (*store.Artifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.programs[id]
	if !ok {
		return nil, false
	}
	p.lastUsed = time.Now()
	return p.artifact, true
}

// Release forgets a program.
func (s *ProgramStore) Release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(id)
}

func (s *ProgramStore) remove(id string) {
	p, ok := s.programs[id]
	if !ok {
		return
	}
	if s.byHash[p.artifact.SourceHash] == id {
		delete(s.byHash, p.artifact.SourceHash)
	}
	delete(s.programs, id)
}

// Len returns the number of stored programs.
func (s *ProgramStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.programs)
}

// Sweep removes programs that haven't been used within ttl.
func (s *ProgramStore) Sweep(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-ttl)
	removed := 0
	for id, p := range s.programs {
		if p.lastUsed.Before(cutoff) {
			s.remove(id)
			removed++
		}
	}
	if removed > 0 {
		log.Debugf("swept %d programs", removed)
	}
	return removed
}

// StartSweeper runs periodic TTL sweeps in the background.
// Returns a stop function.
func (s *ProgramStore) StartSweeper(interval, ttl time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				s.Sweep(ttl)
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { close(done) }
}
