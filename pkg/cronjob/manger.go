package cronjob

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"k8s.io/klog/v2"

	"github.com/sitecraft/sitecraft/pkg/apperr"
)

var ErrJobNotFound = fmt.Errorf("cron job %w", apperr.ErrNotFound)

// JobFunc runs one execution of a job and returns a short summary for the
// run record.
type JobFunc func(ctx context.Context) (string, error)

type Job struct {
	Name string
	Spec string
	Run  JobFunc
}

type entry struct {
	job       Job
	entryID   cron.EntryID
	suspended bool
}

// JobStatus describes a registered job for the admin API.
type JobStatus struct {
	Name      string     `json:"name"`
	Spec      string     `json:"spec"`
	Suspended bool       `json:"suspended"`
	Next      *time.Time `json:"next,omitempty"`
	Prev      *time.Time `json:"prev,omitempty"`
}

type CronJobManager struct {
	cron      *cron.Cron
	cronMutex sync.RWMutex
	jobs      map[string]*entry
	records   *recordBuffer
	timeout   time.Duration
}

// NewCronJobManager builds a stopped manager. Each run gets a context that
// expires after timeout.
func NewCronJobManager(timeout time.Duration) *CronJobManager {
	return &CronJobManager{
		cron:    cron.New(cron.WithLocation(time.Local), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		jobs:    map[string]*entry{},
		records: newRecordBuffer(maxRecords),
		timeout: timeout,
	}
}

// AddCronJob schedules a job. A job with an empty spec is registered as
// suspended and can still be run by hand.
func (cm *CronJobManager) AddCronJob(job Job) error {
	cm.cronMutex.Lock()
	defer cm.cronMutex.Unlock()

	if _, ok := cm.jobs[job.Name]; ok {
		return fmt.Errorf("cron job %s already registered", job.Name)
	}
	e := &entry{job: job, suspended: job.Spec == ""}
	if !e.suspended {
		id, err := cm.cron.AddFunc(job.Spec, cm.wrap(job))
		if err != nil {
			err = fmt.Errorf("CronJobManager.AddCronJob %s: %w", job.Name, err)
			klog.Error(err)
			return err
		}
		e.entryID = id
	}
	cm.jobs[job.Name] = e
	return nil
}

// Suspend removes a job from the schedule, or puts it back.
func (cm *CronJobManager) Suspend(name string, suspend bool) error {
	cm.cronMutex.Lock()
	defer cm.cronMutex.Unlock()

	e, ok := cm.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if e.suspended == suspend {
		return nil
	}
	if suspend {
		cm.cron.Remove(e.entryID)
		e.entryID = 0
		e.suspended = true
		return nil
	}
	if e.job.Spec == "" {
		return fmt.Errorf("cron job %s has no schedule", name)
	}
	id, err := cm.cron.AddFunc(e.job.Spec, cm.wrap(e.job))
	if err != nil {
		return fmt.Errorf("CronJobManager.Suspend %s: %w", name, err)
	}
	e.entryID = id
	e.suspended = false
	return nil
}

// RunNow executes a job synchronously and returns its record.
func (cm *CronJobManager) RunNow(ctx context.Context, name string) (*Record, error) {
	cm.cronMutex.RLock()
	e, ok := cm.jobs[name]
	cm.cronMutex.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	r := cm.execute(ctx, e.job)
	return &r, nil
}

func (cm *CronJobManager) Jobs() []JobStatus {
	cm.cronMutex.RLock()
	defer cm.cronMutex.RUnlock()

	out := make([]JobStatus, 0, len(cm.jobs))
	for _, e := range cm.jobs {
		s := JobStatus{Name: e.job.Name, Spec: e.job.Spec, Suspended: e.suspended}
		if !e.suspended {
			ce := cm.cron.Entry(e.entryID)
			if !ce.Next.IsZero() {
				next := ce.Next
				s.Next = &next
			}
			if !ce.Prev.IsZero() {
				prev := ce.Prev
				s.Prev = &prev
			}
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (cm *CronJobManager) Start() {
	cm.cron.Start()
}

// Stop halts the scheduler and waits for running jobs until ctx expires.
func (cm *CronJobManager) Stop(ctx context.Context) {
	select {
	case <-cm.cron.Stop().Done():
	case <-ctx.Done():
		klog.Warning("cron jobs still running at shutdown")
	}
}

func (cm *CronJobManager) wrap(job Job) func() {
	return func() {
		cm.execute(context.Background(), job)
	}
}

func (cm *CronJobManager) execute(ctx context.Context, job Job) Record {
	if cm.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cm.timeout)
		defer cancel()
	}
	start := time.Now()
	msg, err := job.Run(ctx)
	r := Record{
		Name:        job.Name,
		ExecuteTime: start,
		Duration:    time.Since(start),
		Status:      StatusSuccess,
		Message:     msg,
	}
	if err != nil {
		r.Status = StatusFailed
		r.Message = err.Error()
		klog.Errorf("cron job %s failed: %v", job.Name, err)
	}
	cm.records.add(r)
	return r
}
