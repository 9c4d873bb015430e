package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/alttext/internal/models"
)

// JobStore keeps conversion jobs in memory. Jobs handed out are copies, so
// callers mutate stored state only through Set and Update.
type JobStore struct {
	jobs map[string]*models.ConversionJob
	mu   sync.RWMutex
}

func New() *JobStore {
	return &JobStore{
		jobs: make(map[string]*models.ConversionJob),
	}
}

func (s *JobStore) Get(jobID string) (*models.ConversionJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, exists := s.jobs[jobID]
	if !exists {
		return nil, false
	}
	return clone(job), true
}

func (s *JobStore) Set(jobID string, job *models.ConversionJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[jobID] = clone(job)
}

// Update applies fn to the stored job under the write lock and bumps
// UpdatedAt. It reports false when the job does not exist.
func (s *JobStore) Update(jobID string, fn func(*models.ConversionJob)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, exists := s.jobs[jobID]
	if !exists {
		return false
	}
	fn(job)
	job.UpdatedAt = time.Now()
	return true
}

// GetAll returns every job, oldest first
func (s *JobStore) GetAll() []*models.ConversionJob {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.ConversionJob, 0, len(s.jobs))
	for _, v := range s.jobs {
		result = append(result, clone(v))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func (s *JobStore) Delete(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.jobs[jobID]
	delete(s.jobs, jobID)
	return exists
}

func clone(job *models.ConversionJob) *models.ConversionJob {
	c := *job
	c.Images = append([]string(nil), job.Images...)
	return &c
}
