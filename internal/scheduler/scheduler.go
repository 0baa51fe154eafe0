package scheduler

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const boundaryPrefix = "boundary:"

// Scheduler runs the engine's periodic sweeps and schedule boundary jobs
type Scheduler struct {
	cron      *cron.Cron
	jobMap    map[string]cron.EntryID // job name to cron entry
	jobMapMux sync.RWMutex
}

// NewScheduler creates a scheduler evaluating cron specs in loc
func NewScheduler(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cron.PrintfLogger(log.Default()))),
		),
		jobMap: make(map[string]cron.EntryID),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Println("SCHEDULER: Cron scheduler started")
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("SCHEDULER: Cron scheduler stopped")
}

// AddJob registers fn under name, replacing a previous job of that name.
// A run is skipped while the previous run of the same job is still going.
func (s *Scheduler) AddJob(name, spec string, fn func()) error {
	job := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(fn))

	s.jobMapMux.Lock()
	defer s.jobMapMux.Unlock()

	entryID, err := s.cron.AddJob(spec, job)
	if err != nil {
		return fmt.Errorf("schedule %s with %q: %w", name, spec, err)
	}
	if old, exists := s.jobMap[name]; exists {
		s.cron.Remove(old)
	}
	s.jobMap[name] = entryID
	return nil
}

// AddInterval runs fn every interval. Intervals below one second run every second.
func (s *Scheduler) AddInterval(name string, interval time.Duration, fn func()) error {
	if interval <= 0 {
		return fmt.Errorf("schedule %s: interval must be positive", name)
	}
	if err := s.AddJob(name, "@every "+interval.String(), fn); err != nil {
		return err
	}
	log.Printf("SCHEDULER: %s every %s", name, interval)
	return nil
}

// RemoveJob removes a job by name
func (s *Scheduler) RemoveJob(name string) {
	s.jobMapMux.Lock()
	defer s.jobMapMux.Unlock()

	if entryID, exists := s.jobMap[name]; exists {
		s.cron.Remove(entryID)
		delete(s.jobMap, name)
	}
}

// ReplaceBoundaryJobs drops all boundary jobs and registers fn at every spec.
// Invalid specs are skipped and reported together.
func (s *Scheduler) ReplaceBoundaryJobs(specs []string, fn func()) error {
	s.jobMapMux.Lock()
	for name, entryID := range s.jobMap {
		if strings.HasPrefix(name, boundaryPrefix) {
			s.cron.Remove(entryID)
			delete(s.jobMap, name)
		}
	}
	s.jobMapMux.Unlock()

	var failed []string
	for _, spec := range specs {
		if err := s.AddJob(boundaryPrefix+spec, spec, fn); err != nil {
			log.Printf("SCHEDULER: %v", err)
			failed = append(failed, spec)
		}
	}
	log.Printf("SCHEDULER: Registered %d schedule boundary jobs", len(specs)-len(failed))
	if len(failed) > 0 {
		return fmt.Errorf("invalid boundary specs: %s", strings.Join(failed, ", "))
	}
	return nil
}

// GetScheduledJobCount returns the number of currently scheduled jobs
func (s *Scheduler) GetScheduledJobCount() int {
	s.jobMapMux.RLock()
	defer s.jobMapMux.RUnlock()
	return len(s.jobMap)
}

// NextRun returns the next activation of a named job
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	s.jobMapMux.RLock()
	entryID, ok := s.jobMap[name]
	s.jobMapMux.RUnlock()
	if !ok {
		return time.Time{}, false
	}
	entry := s.cron.Entry(entryID)
	if !entry.Valid() {
		return time.Time{}, false
	}
	return entry.Next, true
}
