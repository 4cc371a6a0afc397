package convert

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/eric2788/fileconv/internal/modules/config"
	"github.com/eric2788/fileconv/internal/modules/engine"
	"github.com/eric2788/fileconv/internal/services/format"
	"github.com/eric2788/fileconv/internal/services/result"
	"github.com/eric2788/fileconv/pkg/ds"
	"github.com/eric2788/fileconv/pkg/pipeline"
	"github.com/eric2788/fileconv/utils"
	"github.com/gabriel-vasile/mimetype"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
	"golang.org/x/sync/semaphore"
)

var logger = logrus.WithField("service", "convert")

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrJobNotPending     = errors.New("job is not pending")
	ErrJobNotFailed      = errors.New("job has not failed")
	ErrUnsupportedFormat = errors.New("target format not supported for this file category")
	ErrUnknownCategory   = errors.New("unknown file category")
	ErrBatchRunning      = errors.New("a batch conversion is already running")
	ErrEngineNotReady    = engine.ErrNotReady
	ErrShuttingDown      = errors.New("convert service is shutting down")
)

const defaultConvertTimeout = 30 * time.Minute

// EngineSource hands out the loaded engine, or ErrNotReady.
type EngineSource interface {
	Handle() (engine.Handle, error)
}

// ResultStore keeps converted outputs until released.
type ResultStore interface {
	Save(ctx context.Context, filename string, data []byte) (*result.Handle, error)
	Release(id string) error
	Link(id string) (string, error)
}

type Option func(*Service)

func WithConvertTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.convertTimeout = d
		}
	}
}

// Service owns the job queue and drives conversions through the engine.
// Queue state is guarded by mu. The gate lets only one engine call run at a time.
type Service struct {
	engine  EngineSource
	results ResultStore
	gate    *semaphore.Weighted

	mu           sync.Mutex
	jobs         []*Job
	batchRunning bool

	convertTimeout time.Duration
	succeeded      *xsync.Counter
	errored        *xsync.Counter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewService(lc fx.Lifecycle, cfg *config.Config, loader *engine.Loader, results *result.Service) *Service {
	svc := New(loader, results, WithConvertTimeout(cfg.ConvertTimeout))
	lc.Append(fx.StopHook(svc.Shutdown))
	return svc
}

func New(src EngineSource, results ResultStore, opts ...Option) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		engine:         src,
		results:        results,
		gate:           semaphore.NewWeighted(1),
		convertTimeout: defaultConvertTimeout,
		succeeded:      xsync.NewCounter(),
		errored:        xsync.NewCounter(),
		ctx:            ctx,
		cancel:         cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Shutdown aborts the running conversion and waits for background work to end.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Add queues every upload as a pending job. An empty category detects the
// category per file from its extension.
func (s *Service) Add(files []Upload, category string) ([]View, error) {
	var forced *format.Category
	if category != "" {
		c, ok := format.Lookup(category)
		if !ok {
			return nil, ErrUnknownCategory
		}
		forced = c
	}
	if len(files) == 0 {
		return []View{}, nil
	}

	added := make([]*Job, 0, len(files))
	for _, f := range files {
		id, err := utils.NewUUIDv4()
		if err != nil {
			return nil, err
		}
		cat := forced
		if cat == nil {
			if detected, ok := format.Detect(f.Filename); ok {
				cat = detected
			} else {
				cat = format.Fallback
			}
		}
		contentType := f.ContentType
		if contentType == "" {
			contentType = mimetype.Detect(f.Data).String()
		}
		added = append(added, &Job{
			ID:           id,
			Filename:     f.Filename,
			Size:         int64(len(f.Data)),
			SourceFormat: format.SourceFormat(f.Filename),
			Category:     cat,
			TargetFormat: cat.Default(),
			ContentType:  contentType,
			AddedAt:      time.Now(),
			data:         f.Data,
			state:        pending{},
		})
	}

	s.mu.Lock()
	s.jobs = append(s.jobs, added...)
	views := make([]View, len(added))
	for i, job := range added {
		views[i] = snapshot(job)
	}
	s.mu.Unlock()

	logger.Infof("queued %d file(s)", len(added))
	return views, nil
}

// Remove deletes the job in any state and releases its result.
// It reports whether the job existed.
func (s *Service) Remove(id string) bool {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	job := s.jobs[idx]
	s.jobs = slices.Delete(s.jobs, idx, idx+1)
	s.mu.Unlock()

	s.release(job)
	logger.WithField("job_id", id).Debug("job removed")
	return true
}

// ClearAll removes every job and releases every result.
func (s *Service) ClearAll() {
	s.mu.Lock()
	jobs := s.jobs
	s.jobs = nil
	s.mu.Unlock()

	for _, job := range jobs {
		s.release(job)
	}
	if len(jobs) > 0 {
		logger.Infof("cleared %d job(s)", len(jobs))
	}
}

func (s *Service) SetTargetFormat(id, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := s.find(id)
	if job == nil {
		return ErrJobNotFound
	} else if job.Status() != StatusPending {
		return ErrJobNotPending
	} else if !job.Category.Supports(target) {
		return ErrUnsupportedFormat
	}
	job.TargetFormat = format.Normalize(target)
	return nil
}

// Retry puts a failed job back to pending.
func (s *Service) Retry(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := s.find(id)
	if job == nil {
		return ErrJobNotFound
	} else if job.Status() != StatusFailed {
		return ErrJobNotFailed
	}
	job.state = pending{}
	return nil
}

// ConvertOne converts a pending job and blocks until it settles. Conversion
// failures end up in the job state and are not returned.
func (s *Service) ConvertOne(ctx context.Context, id string) error {
	job, handle, err := s.begin(id)
	if err != nil || job == nil {
		return err
	}
	s.run(ctx, handle, job)
	return nil
}

// StartConvert marks the job converting and runs the conversion in background.
func (s *Service) StartConvert(id string) error {
	if !s.reserve() {
		return ErrShuttingDown
	}
	job, handle, err := s.begin(id)
	if err != nil || job == nil {
		s.wg.Done()
		return err
	}
	go func() {
		defer s.wg.Done()
		s.run(s.ctx, handle, job)
	}()
	return nil
}

// ConvertAll converts every pending job one after another. Jobs added while
// the batch runs are picked up, and each job is attempted at most once.
func (s *Service) ConvertAll(ctx context.Context) error {
	if err := s.beginBatch(); err != nil {
		return err
	}
	s.drain(ctx)
	return nil
}

func (s *Service) StartConvertAll() error {
	if !s.reserve() {
		return ErrShuttingDown
	}
	if err := s.beginBatch(); err != nil {
		s.wg.Done()
		return err
	}
	go func() {
		defer s.wg.Done()
		s.drain(s.ctx)
	}()
	return nil
}

func (s *Service) List() []View {
	s.mu.Lock()
	views := make([]View, len(s.jobs))
	for i, job := range s.jobs {
		views[i] = snapshot(job)
	}
	s.mu.Unlock()

	for i := range views {
		s.link(&views[i])
	}
	return views
}

func (s *Service) Get(id string) (View, error) {
	s.mu.Lock()
	job := s.find(id)
	if job == nil {
		s.mu.Unlock()
		return View{}, ErrJobNotFound
	}
	v := snapshot(job)
	s.mu.Unlock()

	s.link(&v)
	return v, nil
}

func (s *Service) BatchRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batchRunning
}

func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{
		Total:     len(s.jobs),
		Succeeded: s.succeeded.Value(),
		Errored:   s.errored.Value(),
	}
	for _, job := range s.jobs {
		switch job.Status() {
		case StatusPending:
			st.Pending++
		case StatusConverting:
			st.Converting++
		case StatusConverted:
			st.Converted++
		case StatusFailed:
			st.Failed++
		}
	}
	return st
}

// begin checks the engine and flips a pending job to converting.
// A nil job without error means there is nothing to do.
func (s *Service) begin(id string) (*Job, engine.Handle, error) {
	handle, engineErr := s.engine.Handle()

	s.mu.Lock()
	defer s.mu.Unlock()

	job := s.find(id)
	if job == nil {
		return nil, nil, ErrJobNotFound
	}
	if engineErr != nil {
		if job.Status() == StatusPending {
			job.state = failed{message: ErrEngineNotReady.Error()}
			s.errored.Inc()
		}
		return nil, nil, s.notReady(engineErr)
	}
	if job.Status() != StatusPending {
		return nil, nil, nil
	}
	job.state = converting{}
	return job, handle, nil
}

func (s *Service) beginBatch() error {
	if _, err := s.engine.Handle(); err != nil {
		return s.notReady(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batchRunning {
		return ErrBatchRunning
	}
	s.batchRunning = true
	return nil
}

func (s *Service) drain(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.batchRunning = false
		s.mu.Unlock()
	}()

	attempted := ds.NewSet[string]()
	count := 0
	for ctx.Err() == nil {
		id, ok := s.nextPending(attempted)
		if !ok {
			break
		}
		if err := s.ConvertOne(ctx, id); err != nil {
			if errors.Is(err, ErrJobNotFound) {
				continue
			}
			logger.Warnf("batch stopped: %v", err)
			break
		}
		count++
	}
	logger.Infof("batch finished, %d job(s) attempted", count)
}

// nextPending returns the first pending job in queue order not yet attempted.
func (s *Service) nextPending(attempted ds.Set[string]) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if job.Status() == StatusPending && attempted.AddIfAbsent(job.ID) {
			return job.ID, true
		}
	}
	return "", false
}

func (s *Service) run(ctx context.Context, handle engine.Handle, job *Job) {
	log := logger.WithField("job_id", job.ID)

	if err := s.gate.Acquire(ctx, 1); err != nil {
		s.settle(job, nil, err)
		return
	}
	defer s.gate.Release(1)

	if !s.alive(job) {
		log.Debug("job removed before conversion started")
		return
	}

	start := time.Now()
	res, err := s.convert(ctx, log, handle, job)
	if err != nil {
		log.Warnf("conversion failed after %v: %v", time.Since(start), err)
	} else {
		log.Infof("converted %s to %s in %v", job.Filename, res.Filename, time.Since(start))
	}
	s.settle(job, res, err)
}

func (s *Service) convert(ctx context.Context, log *logrus.Entry, handle engine.Handle, job *Job) (*result.Handle, error) {
	s.mu.Lock()
	cmd := BuildCommand(job.Filename, job.TargetFormat)
	input := job.data
	s.mu.Unlock()

	defer s.cleanup(log, handle, cmd)

	t, err := newEnginePipe(log, s.convertTimeout).Run(ctx, &task{
		handle: handle,
		cmd:    cmd,
		input:  input,
	})
	if err != nil {
		return nil, err
	}
	return s.results.Save(ctx, cmd.Output, t.output)
}

// cleanup deletes the virtual files of cmd, even after the conversion was cancelled.
func (s *Service) cleanup(log *logrus.Entry, handle engine.Handle, cmd Command) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := newCleanupPipe(log).Run(ctx, &task{handle: handle, cmd: cmd}); err != nil {
		log.Errorf("engine files left behind: %v", err)
	}
}

// settle records the outcome only if the same job is still queued.
// A result produced for a removed job is released right away.
func (s *Service) settle(job *Job, res *result.Handle, err error) {
	s.mu.Lock()
	if s.find(job.ID) != job {
		s.mu.Unlock()
		if res != nil {
			if relErr := s.results.Release(res.ID); relErr != nil {
				logger.Warnf("cannot release result of removed job %s: %v", job.ID, relErr)
			}
		}
		return
	}
	if err != nil {
		job.state = failed{message: failureMessage(err)}
		s.errored.Inc()
	} else {
		job.state = converted{result: res}
		job.data = nil
		s.succeeded.Inc()
	}
	s.mu.Unlock()
}

// reserve registers a background run unless the service is shutting down.
func (s *Service) reserve() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Service) alive(job *Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(job.ID) == job
}

func (s *Service) release(job *Job) {
	c, ok := job.state.(converted)
	if !ok || c.result == nil {
		return
	}
	if err := s.results.Release(c.result.ID); err != nil {
		logger.Warnf("cannot release result %s: %v", c.result.ID, err)
	}
}

func (s *Service) notReady(err error) error {
	if errors.Is(err, ErrEngineNotReady) {
		return ErrEngineNotReady
	}
	return errors.Join(ErrEngineNotReady, err)
}

func (s *Service) find(id string) *Job {
	if idx := s.indexOf(id); idx >= 0 {
		return s.jobs[idx]
	}
	return nil
}

func (s *Service) indexOf(id string) int {
	return slices.IndexFunc(s.jobs, func(j *Job) bool { return j.ID == id })
}

// snapshot copies the job for callers and must be called with mu held.
// Download links are added afterwards by link, outside the lock.
func snapshot(job *Job) View {
	v := View{
		ID:           job.ID,
		Filename:     job.Filename,
		Size:         job.Size,
		SizeText:     humanize.Bytes(uint64(job.Size)),
		SourceFormat: job.SourceFormat,
		Category:     job.Category.Name,
		TargetFormat: job.TargetFormat,
		Formats:      slices.Clone(job.Category.Formats),
		ContentType:  job.ContentType,
		Status:       job.Status(),
		AddedAt:      job.AddedAt,
	}
	switch st := job.state.(type) {
	case converted:
		v.Result = &ResultHandle{
			ID:          st.result.ID,
			Filename:    st.result.Filename,
			ContentType: st.result.ContentType,
			Size:        st.result.Size,
		}
	case failed:
		v.Error = st.message
	}
	return v
}

// link fills in the download URL of a converted view. The result may have been
// released since the snapshot, which leaves the URL empty.
func (s *Service) link(v *View) {
	if v.Result == nil {
		return
	}
	url, err := s.results.Link(v.Result.ID)
	if err == nil {
		v.Result.URL = url
	} else if errors.Is(err, result.ErrHandleNotFound) {
		logger.Debugf("result %s released before its link was issued", v.Result.ID)
	} else {
		logger.Warnf("cannot issue download link for %s: %v", v.Result.ID, err)
	}
}

func failureMessage(err error) string {
	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		err = stageErr.Err
	}
	var execErr *engine.ExecError
	if errors.As(err, &execErr) && execErr.Message != "" {
		return execErr.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "conversion failed"
}
