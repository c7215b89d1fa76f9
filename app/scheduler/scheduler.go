package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-club-dues/app/factory"
)

var (
	ErrUnknownTask   = errors.New("unknown task")
	ErrDuplicateTask = errors.New("task already registered")
	ErrTaskRunning   = errors.New("task is already running")
	ErrInvalidSpec   = errors.New("invalid cron spec")
)

// Func is one run of a task. The returned fields are attached to the
// job_completed log entry.
type Func func(ctx context.Context) (logrus.Fields, error)

type TaskInfo struct {
	Name      string    `json:"name"`
	Spec      string    `json:"spec"`
	Enabled   bool      `json:"enabled"`
	Running   bool      `json:"running"`
	Next      time.Time `json:"next,omitempty"`
	LastRun   time.Time `json:"last_run,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

type task struct {
	name     string
	spec     string
	schedule cron.Schedule
	fn       Func
	entryID  cron.EntryID
	enabled  bool
	running  atomic.Bool
	lastRun  time.Time
	lastErr  error
}

// Scheduler runs named tasks on cron schedules evaluated in one location.
type Scheduler struct {
	mu       sync.Mutex
	cron     *cron.Cron
	location *time.Location
	tasks    map[string]*task
	logger   logrus.FieldLogger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

func New(location *time.Location) *Scheduler {
	if location == nil {
		location = time.UTC
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(location)),
		location: location,
		tasks:    make(map[string]*task),
		logger:   factory.NewModuleLogger("scheduler"),
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Register adds an enabled task. spec uses the standard five-field cron
// syntax or a descriptor such as "@every 1h".
func (s *Scheduler) Register(name, spec string, fn Func) error {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return errors.Join(ErrInvalidSpec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[name]; ok {
		return ErrDuplicateTask
	}

	t := &task{name: name, spec: spec, schedule: schedule, fn: fn}
	s.tasks[name] = t
	s.enable(t)
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.WithField("tasks", len(s.tasks)).Info("Scheduler started")
}

// Stop halts future firings and waits for running tasks until ctx is done,
// at which point their contexts are cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.cancel()
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}

func (s *Scheduler) StartTask(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[name]
	if !ok {
		return ErrUnknownTask
	}
	if !t.enabled {
		s.enable(t)
		s.logger.WithField("job", name).Info("Task enabled")
	}
	return nil
}

func (s *Scheduler) StopTask(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[name]
	if !ok {
		return ErrUnknownTask
	}
	if t.enabled {
		s.cron.Remove(t.entryID)
		t.enabled = false
		t.entryID = 0
		s.logger.WithField("job", name).Info("Task disabled")
	}
	return nil
}

// RunNow runs the task synchronously, whether or not it is enabled, and
// returns the fields the run reported.
func (s *Scheduler) RunNow(ctx context.Context, name string) (logrus.Fields, error) {
	s.mu.Lock()
	t, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return nil, ErrUnknownTask
	}
	return s.run(ctx, t)
}

func (s *Scheduler) Tasks() []TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().In(s.location)
	out := make([]TaskInfo, 0, len(s.tasks))
	for _, t := range s.tasks {
		info := TaskInfo{
			Name:    t.name,
			Spec:    t.spec,
			Enabled: t.enabled,
			Running: t.running.Load(),
			LastRun: t.lastRun,
		}
		if t.lastErr != nil {
			info.LastError = t.lastErr.Error()
		}
		if t.enabled {
			info.Next = s.cron.Entry(t.entryID).Next
			if info.Next.IsZero() {
				info.Next = t.schedule.Next(now)
			}
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) enable(t *task) {
	t.entryID = s.cron.Schedule(t.schedule, cron.FuncJob(func() {
		if _, err := s.run(s.ctx, t); errors.Is(err, ErrTaskRunning) {
			s.logger.WithField("job", t.name).Warn("Skipping firing, previous run still in progress")
		}
	}))
	t.enabled = true
}

func (s *Scheduler) run(ctx context.Context, t *task) (logrus.Fields, error) {
	if !t.running.CompareAndSwap(false, true) {
		return nil, ErrTaskRunning
	}
	defer t.running.Store(false)

	start := s.now()
	fields, err := t.fn(ctx)
	latency := time.Since(start)

	s.mu.Lock()
	t.lastRun = start
	t.lastErr = err
	s.mu.Unlock()

	entry := s.logger.WithField("job", t.name).WithField("latency", latency.String())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	if err != nil {
		entry.WithError(err).Error("job_failed")
		return fields, err
	}
	entry.Info("job_completed")
	return fields, nil
}
