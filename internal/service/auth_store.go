package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/jeongyiya/steno-caption/internal/errs"
)

// PINChecker validates a PIN against a job. Implemented by *JobRegistry.
type PINChecker interface {
	CheckPIN(jobID, pin string) error
}

type authorizationRecord struct {
	jobs      map[string]struct{}
	expiresAt time.Time
}

// AuthorizationStore records which jobs each viewer session has unlocked.
type AuthorizationStore struct {
	mu       sync.RWMutex
	sessions map[string]*authorizationRecord
	jobs     PINChecker
	limiter  *AttemptLimiter
	lifetime time.Duration
	now      func() time.Time
}

// NewAuthorizationStore creates a store. limiter may be nil.
func NewAuthorizationStore(jobs PINChecker, limiter *AttemptLimiter, lifetime time.Duration) *AuthorizationStore {
	return &AuthorizationStore{
		sessions: make(map[string]*authorizationRecord),
		jobs:     jobs,
		limiter:  limiter,
		lifetime: lifetime,
		now:      time.Now,
	}
}

// Authorize checks pin for jobID and, on success, adds the job to the
// session's authorized set and extends the session expiry. Failed attempts
// are throttled per session.
func (s *AuthorizationStore) Authorize(sessionID, jobID string, pin *string) error {
	return s.AuthorizeClient(sessionID, sessionID, jobID, pin)
}

// AuthorizeClient is Authorize with failed attempts throttled per client key
// (typically the remote address) instead of per session. Checks run in a
// fixed order: parameters, throttling, job state, PIN. A correct PIN never
// consumes the client's attempt budget.
func (s *AuthorizationStore) AuthorizeClient(client, sessionID, jobID string, pin *string) error {
	if jobID == "" || pin == nil {
		return errs.ErrMissingParameter
	}
	now := s.now()
	refund, ok := s.limiter.Reserve(client+"|"+jobID, now)
	if !ok {
		return errs.ErrTooManyAttempts
	}
	if err := s.jobs.CheckPIN(jobID, *pin); err != nil {
		return fmt.Errorf("authorize %s: %w", jobID, err)
	}
	refund()

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[sessionID]
	if !ok || !rec.expiresAt.After(now) {
		rec = &authorizationRecord{jobs: make(map[string]struct{})}
		s.sessions[sessionID] = rec
	}
	rec.jobs[jobID] = struct{}{}
	rec.expiresAt = now.Add(s.lifetime)
	return nil
}

// IsAuthorized reports whether the session unlocked jobID and has not expired.
func (s *AuthorizationStore) IsAuthorized(sessionID, jobID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sessions[sessionID]
	if !ok || !rec.expiresAt.After(s.now()) {
		return false
	}
	_, ok = rec.jobs[jobID]
	return ok
}

// ExpiresAt returns the session's expiry, zero if the session is unknown.
func (s *AuthorizationStore) ExpiresAt(sessionID string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.sessions[sessionID]; ok {
		return rec.expiresAt
	}
	return time.Time{}
}

// Sweep evicts expired sessions and idle attempt buckets.
func (s *AuthorizationStore) Sweep(now time.Time) int {
	s.limiter.Sweep(now)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, rec := range s.sessions {
		if !rec.expiresAt.After(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// Len returns the number of tracked sessions.
func (s *AuthorizationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
