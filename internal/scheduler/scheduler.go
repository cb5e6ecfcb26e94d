package scheduler

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"propertypro/server/internal/models"
)

// JobType represents the kinds of training jobs the scheduler runs
type JobType int

const (
	JobTypeStartup JobType = iota
	JobTypeRetrain
)

func (j JobType) String() string {
	switch j {
	case JobTypeStartup:
		return "startup"
	case JobTypeRetrain:
		return "retrain"
	default:
		return "unknown"
	}
}

// Trainer is the part of the recommendation engine the scheduler drives.
type Trainer interface {
	Retrain(ctx context.Context, force bool) (bool, error)
}

// Schedule configures when the nightly retrain fires.
type Schedule struct {
	Enabled bool
	Hour    int
	Minute  int
}

// Scheduler trains the interest model once at startup and then daily.
type Scheduler struct {
	trainer      Trainer
	schedule     Schedule
	logger       *logrus.Logger
	stopChan     chan struct{}
	wg           sync.WaitGroup
	jobMutex     sync.Mutex // Ensures sequential job execution
	isStartupRun atomic.Bool
	ctx          context.Context
	cancel       context.CancelFunc
}

func NewScheduler(trainer Trainer, schedule Schedule, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
		logger.SetLevel(logrus.InfoLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		trainer:  trainer,
		schedule: schedule,
		logger:   logger,
		stopChan: make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.isStartupRun.Store(true)
	return s
}

func (s *Scheduler) Start() {
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.runStartup()
	}()
	go s.runScheduler()
}

// runStartup trains only when no model could be loaded from disk.
func (s *Scheduler) runStartup() {
	s.jobMutex.Lock()
	defer s.jobMutex.Unlock()
	defer s.isStartupRun.Store(false)

	s.logger.Info("Running startup training job")
	s.runJob(JobTypeStartup, false)
	s.logger.Info("Startup training job completed")
}

func (s *Scheduler) runScheduler() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case t := <-ticker.C:
			s.executeScheduledJobs(t)
		}
	}
}

func (s *Scheduler) executeScheduledJobs(t time.Time) {
	if s.isStartupRun.Load() {
		s.logger.Debug("Skipping scheduled jobs while startup is in progress")
		return
	}
	if !s.schedule.Enabled {
		return
	}

	s.jobMutex.Lock()
	defer s.jobMutex.Unlock()

	s.logger.WithFields(logrus.Fields{
		"hour":   t.Hour(),
		"minute": t.Minute(),
	}).Debug("Checking scheduled jobs")

	if t.Hour() == s.schedule.Hour && t.Minute() == s.schedule.Minute {
		s.logger.Info("Starting scheduled retrain")
		s.runJob(JobTypeRetrain, true)
		s.logger.Info("Completed scheduled retrain")
	}
}

func (s *Scheduler) runJob(job JobType, force bool) {
	fields := logrus.Fields{"job_type": job.String(), "force": force}

	trained, err := s.trainer.Retrain(s.ctx, force)
	switch {
	case errors.Is(err, models.ErrInsufficientData):
		s.logger.WithFields(fields).Info("Not enough interactions to train yet")
	case errors.Is(err, models.ErrTrainingInProgress):
		s.logger.WithFields(fields).Info("Training already in progress, skipping job")
	case err != nil:
		s.logger.WithError(err).WithFields(fields).Error("Training job failed")
	case !trained:
		s.logger.WithFields(fields).Info("Model already loaded, training skipped")
	default:
		s.logger.WithFields(fields).Info("Training job completed successfully")
	}
}

// Stop cancels an in-flight training and waits for the loops to exit.
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.cancel()
	s.wg.Wait()
}
