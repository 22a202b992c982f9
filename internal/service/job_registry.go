package service

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jeongyiya/steno-caption/internal/errs"
	"github.com/jeongyiya/steno-caption/internal/model"
)

const (
	jobIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	jobIDLength   = 6
	pinLength     = 4
	maxIDAttempts = 8
	pinUpperBound = 10000
)

// JobRegistry is the in-memory table of transcription jobs.
type JobRegistry struct {
	mu    sync.RWMutex
	jobs  map[string]*model.Job
	ttl   time.Duration
	rand  io.Reader
	now   func() time.Time
	newID func() (string, error)
}

// NewJobRegistry creates a registry. Jobs older than ttl are removed by Sweep;
// ttl 0 keeps them for the process lifetime.
func NewJobRegistry(ttl time.Duration) *JobRegistry {
	r := &JobRegistry{
		jobs: make(map[string]*model.Job),
		ttl:  ttl,
		rand: rand.Reader,
		now:  time.Now,
	}
	r.newID = r.generateID
	return r
}

// Create inserts a fresh active job and returns a copy of it.
func (r *JobRegistry) Create() (*model.Job, error) {
	pin, err := r.generatePIN()
	if err != nil {
		return nil, fmt.Errorf("generate pin: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := r.newID()
		if err != nil {
			return nil, fmt.Errorf("generate job id: %w", err)
		}
		if _, taken := r.jobs[id]; taken {
			continue
		}
		job := &model.Job{
			ID:          id,
			PIN:         pin,
			WriterToken: uuid.New().String(),
			Status:      model.JobStatusActive,
			CreatedAt:   r.now(),
		}
		r.jobs[id] = job
		out := *job
		return &out, nil
	}
	return nil, errs.ErrGenerationExhausted
}

// End marks the job ended. Ending an already ended job succeeds.
func (r *JobRegistry) End(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return errs.ErrJobNotFound
	}
	if job.Status != model.JobStatusEnded {
		now := r.now()
		job.Status = model.JobStatusEnded
		job.EndedAt = &now
	}
	return nil
}

// Get returns a copy of the job.
func (r *JobRegistry) Get(id string) (model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return model.Job{}, errs.ErrJobNotFound
	}
	return *job, nil
}

// IsActive reports whether id exists and has not been ended.
func (r *JobRegistry) IsActive(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	return ok && job.Active()
}

// GetPIN returns the stored PIN of a job.
func (r *JobRegistry) GetPIN(id string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return "", errs.ErrJobNotFound
	}
	return job.PIN, nil
}

// CheckPIN validates a submitted PIN against an active job in one step.
func (r *JobRegistry) CheckPIN(id, pin string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok || !job.Active() {
		return errs.ErrInvalidSession
	}
	if subtle.ConstantTimeCompare([]byte(job.PIN), []byte(NormalizePIN(pin))) != 1 {
		return errs.ErrWrongPIN
	}
	return nil
}

// VerifyWriter checks the writer token issued with the job.
func (r *JobRegistry) VerifyWriter(id, token string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return errs.ErrJobNotFound
	}
	if token == "" || subtle.ConstantTimeCompare([]byte(job.WriterToken), []byte(token)) != 1 {
		return errs.ErrWriterTokenMismatch
	}
	return nil
}

// Sweep removes jobs created more than ttl before now.
func (r *JobRegistry) Sweep(now time.Time) int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := now.Add(-r.ttl)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, job := range r.jobs {
		if job.CreatedAt.Before(cutoff) {
			delete(r.jobs, id)
			n++
		}
	}
	return n
}

// Len returns the number of jobs held.
func (r *JobRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

func (r *JobRegistry) generateID() (string, error) {
	var sb strings.Builder
	sb.Grow(jobIDLength)
	alphabetSize := big.NewInt(int64(len(jobIDAlphabet)))
	for i := 0; i < jobIDLength; i++ {
		n, err := rand.Int(r.rand, alphabetSize)
		if err != nil {
			return "", err
		}
		sb.WriteByte(jobIDAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

func (r *JobRegistry) generatePIN() (string, error) {
	n, err := rand.Int(r.rand, big.NewInt(pinUpperBound))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", pinLength, n.Int64()), nil
}

// NormalizePIN left-pads pin with zeros to four characters.
// Longer values are returned unchanged.
func NormalizePIN(pin string) string {
	if n := len([]rune(pin)); n < pinLength {
		return strings.Repeat("0", pinLength-n) + pin
	}
	return pin
}
