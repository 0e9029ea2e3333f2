/*
Package ncron runs injected functions on cron schedules.

Each run supplies a Tick as required state.  Everything else the job
needs comes from the injector's providers, freshly produced (and
released) for every run:

	sched := ncron.MustNewScheduler(inj, ncron.WithLogger(logger))
	sched.MustSchedule("cleanup", "@every 1h", func(tick ncron.Tick, tx *sql.Tx) error {
		...
	})
	sched.Start()
	defer sched.Stop()
*/
package ncron

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/muir/ndep"
	"github.com/muir/ndep/nlog"
)

// StateTick is the name of the required state that supplies Tick
const StateTick = "tick"

// Tick describes one run of a job
type Tick struct {
	Job  string
	Time time.Time
	// Run counts the runs of the job, starting at 1
	Run int64
}

// Scheduler runs injected jobs
type Scheduler struct {
	inj  *ndep.Injector
	cron *cron.Cron
	log  nlog.BasicLogger
	now  func() time.Time
	mu   sync.Mutex
	jobs map[string]*job
}

type job struct {
	name     string
	spec     string
	f        *ndep.Function
	id       cron.EntryID
	runs     int64
	failures int64
}

type options struct {
	location *time.Location
	seconds  bool
	log      nlog.BasicLogger
	now      func() time.Time
	overlap  bool
}

// Option configures a Scheduler
type Option func(*options)

// WithLocation sets the time zone for schedules.  The default is UTC.
func WithLocation(loc *time.Location) Option {
	return func(o *options) { o.location = loc }
}

// WithSeconds allows schedules with a leading seconds field
func WithSeconds() Option {
	return func(o *options) { o.seconds = true }
}

// WithLogger sets the logger used for job failures and for the
// cron library's own messages
func WithLogger(log nlog.BasicLogger) Option {
	return func(o *options) { o.log = nlog.OrNoLogger(log) }
}

// WithClock replaces time.Now for Tick.Time
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// AllowOverlap lets a job start while its previous run is still
// going.  By default the new run is skipped.
func AllowOverlap() Option {
	return func(o *options) { o.overlap = true }
}

// NewScheduler declares Tick as required state on inj and creates a
// Scheduler that is not yet started.
func NewScheduler(inj *ndep.Injector, opts ...Option) (*Scheduler, error) {
	o := options{
		location: time.UTC,
		log:      nlog.NoLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	err := inj.RequireState(map[string]ndep.Key{
		StateTick: ndep.KeyOf[Tick](),
	})
	if err != nil {
		return nil, errors.Wrap(err, "ncron")
	}
	logger := cronLogger{log: o.log}
	wrappers := []cron.JobWrapper{cron.Recover(logger)}
	if !o.overlap {
		wrappers = append(wrappers, cron.SkipIfStillRunning(logger))
	}
	cronOpts := []cron.Option{
		cron.WithLocation(o.location),
		cron.WithLogger(logger),
		cron.WithChain(wrappers...),
	}
	if o.seconds {
		cronOpts = append(cronOpts, cron.WithSeconds())
	}
	return &Scheduler{
		inj:  inj,
		cron: cron.New(cronOpts...),
		log:  o.log,
		now:  o.now,
		jobs: make(map[string]*job),
	}, nil
}

// MustNewScheduler calls NewScheduler and panics on error
func MustNewScheduler(inj *ndep.Injector, opts ...Option) *Scheduler {
	s, err := NewScheduler(inj, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Schedule injects target and runs it on spec.  Job names must be
// unique.  The target's error, if any, is logged.
func (s *Scheduler) Schedule(name, spec string, target any, paramNames ...string) error {
	f, err := s.inj.Inject(target, paramNames...)
	if err != nil {
		return errors.Wrapf(err, "job %s", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; ok {
		return errors.Errorf("job %s is already scheduled", name)
	}
	j := &job{name: name, spec: spec, f: f}
	j.id, err = s.cron.AddFunc(spec, func() { _ = s.run(j) })
	if err != nil {
		return errors.Wrapf(err, "job %s: schedule %q", name, spec)
	}
	s.jobs[name] = j
	s.log.Debug("scheduled job", map[string]any{
		"job":  name,
		"spec": spec,
	})
	return nil
}

// MustSchedule calls Schedule and panics on error
func (s *Scheduler) MustSchedule(name, spec string, target any, paramNames ...string) {
	if err := s.Schedule(name, spec, target, paramNames...); err != nil {
		panic(ndep.DetailedError(err))
	}
}

// RunNow runs a job immediately, in the calling goroutine, and
// returns its error.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return errors.Errorf("no job named %s", name)
	}
	return s.run(j)
}

func (s *Scheduler) run(j *job) error {
	tick := Tick{
		Job:  j.name,
		Time: s.now(),
		Run:  atomic.AddInt64(&j.runs, 1),
	}
	_, err := j.f.Call(ndep.State{StateTick: tick})
	if err != nil {
		atomic.AddInt64(&j.failures, 1)
		s.log.Error("job failed", map[string]any{
			"job":   j.name,
			"run":   tick.Run,
			"error": err.Error(),
		})
	}
	return err
}

// Remove unschedules a job.  It returns false if there is no such job.
func (s *Scheduler) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[name]
	if !ok {
		return false
	}
	s.cron.Remove(j.id)
	delete(s.jobs, name)
	return true
}

// Start runs the scheduler in its own goroutine
func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops the scheduler.  The returned context is done when
// running jobs have completed.
func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }

// JobInfo reports on a scheduled job
type JobInfo struct {
	Name     string
	Spec     string
	Runs     int64
	Failures int64
	Next     time.Time
	Plan     string
}

// Jobs lists the scheduled jobs, sorted by name
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	infos := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		infos = append(infos, JobInfo{
			Name:     j.name,
			Spec:     j.spec,
			Runs:     atomic.LoadInt64(&j.runs),
			Failures: atomic.LoadInt64(&j.failures),
			Next:     s.cron.Entry(j.id).Next,
			Plan:     j.f.String(),
		})
	}
	sort.Slice(infos, func(i, k int) bool { return infos[i].Name < infos[k].Name })
	return infos
}

// cronLogger lets the cron library log through a BasicLogger
type cronLogger struct {
	log nlog.BasicLogger
}

var _ cron.Logger = cronLogger{}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, fieldMap(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	fields := fieldMap(keysAndValues)
	fields["error"] = err.Error()
	l.log.Error("cron: "+msg, fields)
}

func fieldMap(keysAndValues []any) map[string]any {
	fields := make(map[string]any, len(keysAndValues)/2+1)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		k, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields[k] = keysAndValues[i+1]
	}
	return fields
}
