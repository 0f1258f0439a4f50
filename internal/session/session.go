package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"ragchat/internal/domain"
)

var ErrNotFound = errors.New("session: not found")

type session struct {
	turns    []domain.ChatTurn
	lastSeen time.Time
}

// Store keeps the chat history of every live conversation in memory.
// Histories are lost on restart.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*session
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*session), now: time.Now}
}

// Create starts an empty conversation and returns its id.
func (s *Store) Create() string {
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = &session{lastSeen: s.now()}
	s.mu.Unlock()
	return id
}

// Ensure returns id when it names a live session and creates a new one
// otherwise.
func (s *Store) Ensure(id string) string {
	if id != "" {
		s.mu.Lock()
		_, ok := s.sessions[id]
		s.mu.Unlock()
		if ok {
			return id
		}
		if _, err := uuid.Parse(id); err == nil {
			s.mu.Lock()
			if _, ok := s.sessions[id]; !ok {
				s.sessions[id] = &session{lastSeen: s.now()}
			}
			s.mu.Unlock()
			return id
		}
	}
	return s.Create()
}

// History returns a copy of the turns of session id.
func (s *Store) History(id string) ([]domain.ChatTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]domain.ChatTurn, len(sess.turns))
	copy(out, sess.turns)
	return out, nil
}

// Record appends one completed exchange to session id.
func (s *Store) Record(id, query, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	sess.turns = append(sess.turns,
		domain.ChatTurn{Role: domain.RoleUser, Content: query},
		domain.ChatTurn{Role: domain.RoleAssistant, Content: answer},
	)
	sess.lastSeen = s.now()
	return nil
}

// Reset clears the history of session id and keeps the session alive.
func (s *Store) Reset(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	sess.turns = nil
	sess.lastSeen = s.now()
	return nil
}

// Delete forgets session id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Prune drops sessions idle for longer than maxIdle and returns how many
// were removed.
func (s *Store) Prune(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-maxIdle)
	removed := 0
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
