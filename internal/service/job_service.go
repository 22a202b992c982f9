package service

import (
	"time"

	"github.com/jeongyiya/steno-caption/internal/model"
	"go.uber.org/zap"
)

// JobServicer is what the transport handlers need from the job layer.
type JobServicer interface {
	Create() (*model.Job, error)
	End(jobID, writerToken string) error
	Publish(jobID, text, writerToken string) error
	PublishGlobal(text string)
	Subscribe(jobID string) (*Subscription, func())
}

// JobService ties the registry to the broadcast router.
type JobService struct {
	jobs               *JobRegistry
	router             *BroadcastRouter
	requireWriterToken bool
	log                *zap.Logger
}

// NewJobService creates a job service. When requireWriterToken is set, End
// and Publish must present the token issued by Create.
func NewJobService(jobs *JobRegistry, router *BroadcastRouter, requireWriterToken bool, log *zap.Logger) *JobService {
	return &JobService{jobs: jobs, router: router, requireWriterToken: requireWriterToken, log: log}
}

// Create creates a new active job.
func (s *JobService) Create() (*model.Job, error) {
	job, err := s.jobs.Create()
	if err != nil {
		return nil, err
	}
	s.log.Info("job created", zap.String("job_id", job.ID))
	return job, nil
}

// End marks the job ended and notifies its filtered viewers.
func (s *JobService) End(jobID, writerToken string) error {
	if s.requireWriterToken {
		if err := s.jobs.VerifyWriter(jobID, writerToken); err != nil {
			return err
		}
	}
	if err := s.jobs.End(jobID); err != nil {
		return err
	}
	s.router.EndJob(jobID)
	s.log.Info("job ended", zap.String("job_id", jobID))
	return nil
}

// Publish broadcasts a snapshot for jobID. The job is not required to exist
// unless writer tokens are enforced.
func (s *JobService) Publish(jobID, text, writerToken string) error {
	if s.requireWriterToken {
		if err := s.jobs.VerifyWriter(jobID, writerToken); err != nil {
			return err
		}
	}
	s.router.Publish(jobID, text)
	return nil
}

// PublishGlobal broadcasts under the GLOBAL job id.
func (s *JobService) PublishGlobal(text string) {
	s.router.PublishGlobal(text)
}

// Subscribe registers a viewer with the router.
func (s *JobService) Subscribe(jobID string) (*Subscription, func()) {
	return s.router.Subscribe(jobID)
}

// Sweep evicts expired jobs.
func (s *JobService) Sweep(now time.Time) int {
	n := s.jobs.Sweep(now)
	if n > 0 {
		s.log.Info("jobs evicted", zap.Int("count", n), zap.Int("remaining", s.jobs.Len()))
	}
	return n
}
