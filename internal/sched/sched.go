// Package sched runs deferred and repeating jobs for the bot.
package sched

import (
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Task is a handle on a scheduled job.
type Task struct {
	// ID names the task in logs.
	ID string

	stop func() bool
}

// Cancel stops the task. It reports whether the cancellation took effect:
// false means the task already ran to completion or was cancelled before.
func (t *Task) Cancel() bool { return t.stop() }

// Scheduler owns one-shot and repeating tasks. All of its methods are safe
// for concurrent use; task functions run on their own goroutines and a
// panic in one is logged without taking the scheduler down.
type Scheduler struct {
	mu      sync.Mutex
	tasks   map[string]*Task
	entropy *rand.Rand
}

// New returns an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{
		tasks:   make(map[string]*Task),
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// newID must be called with s.mu held; the entropy source is not safe for
// concurrent use.
func (s *Scheduler) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// Schedule runs fn once, at or after delay.
func (s *Scheduler) Schedule(delay time.Duration, fn func()) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	t := &Task{ID: id}
	timer := time.AfterFunc(delay, func() {
		defer s.remove(id)
		s.invoke(id, fn)
	})
	t.stop = func() bool {
		s.remove(id)
		return timer.Stop()
	}
	s.tasks[id] = t
	return t
}

// Every runs fn repeatedly at the given interval until the task or the
// scheduler is stopped. The first run happens one interval from now.
func (s *Scheduler) Every(interval time.Duration, fn func()) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	t := &Task{ID: id}
	done := make(chan struct{})
	var once sync.Once
	t.stop = func() bool {
		stopped := false
		once.Do(func() {
			close(done)
			stopped = true
		})
		if stopped {
			s.remove(id)
		}
		return stopped
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.invoke(id, fn)
			case <-done:
				return
			}
		}
	}()

	s.tasks[id] = t
	return t
}

// Pending returns the number of live tasks.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Stop cancels every live task. The scheduler remains usable afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	tasks := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()

	for _, t := range tasks {
		t.Cancel()
	}
}

func (s *Scheduler) remove(id string) {
	s.mu.Lock()
	delete(s.tasks, id)
	s.mu.Unlock()
}

func (s *Scheduler) invoke(id string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Task %s panicked: %v", id, r)
		}
	}()
	fn()
}
