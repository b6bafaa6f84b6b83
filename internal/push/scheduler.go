package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hbkim/iljeong/internal/store"
)

// Scheduler periodically checks for pending tasks whose reminder window
// has opened and sends one push notification per task.
type Scheduler struct {
	mu       sync.RWMutex
	service  *Service
	push     *store.PushStore
	tasks    *store.TaskStore
	lead     time.Duration
	loc      *time.Location
	interval time.Duration
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewScheduler creates a reminder scheduler. lead is how long before a
// task's start time its reminder fires.
func NewScheduler(svc *Service, pushStore *store.PushStore, taskStore *store.TaskStore, lead time.Duration, loc *time.Location, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		service:  svc,
		push:     pushStore,
		tasks:    taskStore,
		lead:     lead,
		loc:      loc,
		interval: 60 * time.Second,
		logger:   logger,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick() {
	now := time.Now().UTC()
	// Tasks starting between now and now+lead are due for a reminder.
	tasks, err := s.tasks.ListUpcoming(now, now.Add(s.lead))
	if err != nil {
		s.logger.Error("list upcoming tasks", "error", err)
		return
	}
	if len(tasks) == 0 {
		return
	}

	subs, err := s.push.List()
	if err != nil {
		s.logger.Error("list subscriptions", "error", err)
		return
	}
	if len(subs) == 0 {
		return
	}

	for _, task := range tasks {
		sent, err := s.push.WasSent(task.ID)
		if err != nil {
			s.logger.Error("check sent log", "error", err, "task_id", task.ID)
			continue
		}
		if sent {
			continue
		}

		payload := Payload{
			Title: task.Title,
			Body:  fmt.Sprintf("%s 일정 시작", task.StartTime.In(s.loc).Format("15:04")),
			URL:   "/dashboard",
			Tag:   fmt.Sprintf("task-%d", task.ID),
		}

		for i := range subs {
			if err := s.service.Send(&subs[i], payload); err != nil {
				if errors.Is(err, ErrExpired) {
					if derr := s.push.Delete(subs[i].ID); derr != nil {
						s.logger.Error("prune expired subscription", "error", derr)
					}
					continue
				}
				s.logger.Error("send reminder", "error", err, "task_id", task.ID)
			}
		}

		if err := s.push.MarkSent(task.ID); err != nil {
			s.logger.Error("mark sent", "error", err, "task_id", task.ID)
		}
	}
}
