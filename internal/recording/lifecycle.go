// Package recording owns the one video session a controller run produces:
// it is opened at startup, finalized exactly once, then archived.
package recording

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pitabwire/inspector/internal/observability"
)

// ErrDisabled is returned when no session could be opened. The workflow keeps
// running without a recording.
var ErrDisabled = errors.New("recording: disabled")

// DefaultStopTimeout bounds encoder finalization.
const DefaultStopTimeout = 5 * time.Second

// Encoder writes raw frames to a container file.
type Encoder interface {
	Open(path string) error
	WriteFrame(data []byte) error
	// Finalize flushes and closes the file. It is called at most once.
	Finalize(ctx context.Context) error
}

// Archiver copies a finished file to secondary storage.
type Archiver interface {
	Archive(ctx context.Context, src string) (string, error)
}

// Observer receives recording metrics.
type Observer interface {
	SetRecording(active bool)
	RecordFrameWriteFailure()
	RecordArchive(result string)
}

// Session is one capture target. It accepts frames until closed and is
// closed exactly once.
type Session struct {
	ID        string
	Filename  string
	Path      string
	StartedAt time.Time

	active      atomic.Bool
	closeOnce   sync.Once
	closeErr    error
	archiveOnce sync.Once
}

// Active reports whether the session still accepts frames.
func (s *Session) Active() bool { return s.active.Load() }

// Option configures a Lifecycle.
type Option func(*Lifecycle)

// WithOutput sets the directory and filename prefix of session files.
func WithOutput(dir, prefix string) Option {
	return func(l *Lifecycle) { l.dir, l.prefix = dir, prefix }
}

// WithArchiver enables archival after stop.
func WithArchiver(a Archiver) Option {
	return func(l *Lifecycle) { l.archiver = a }
}

// WithStopTimeout overrides DefaultStopTimeout.
func WithStopTimeout(d time.Duration) Option {
	return func(l *Lifecycle) { l.stopTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Lifecycle) { l.logger = logger }
}

// WithObserver registers an observer. It may be given more than once; every
// observer sees every event. Observers must not block.
func WithObserver(o Observer) Option {
	return func(l *Lifecycle) { l.observers = append(l.observers, o) }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Lifecycle) { l.now = now }
}

// Lifecycle drives a single Session through start, stop and archive.
type Lifecycle struct {
	enc         Encoder
	archiver    Archiver
	dir         string
	prefix      string
	stopTimeout time.Duration
	logger      *zap.Logger
	observers   []Observer
	now         func() time.Time

	started atomic.Bool
	session atomic.Pointer[Session]
	stopReq chan struct{}

	// wmu serializes frame writes with finalization.
	wmu      sync.Mutex
	failures atomic.Uint64
}

// New returns a Lifecycle writing through enc.
func New(enc Encoder, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		enc:         enc,
		dir:         ".",
		prefix:      "inspection_",
		stopTimeout: DefaultStopTimeout,
		logger:      zap.NewNop(),
		now:         time.Now,
		stopReq:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SessionFilename derives the file name from the session start time.
func SessionFilename(prefix string, at time.Time) string {
	return prefix + at.Format("20060102_150405") + ".mp4"
}

// Start opens the session. It may be called once; a failure leaves recording
// disabled for the rest of the run.
func (l *Lifecycle) Start(ctx context.Context) (*Session, error) {
	if !l.started.CompareAndSwap(false, true) {
		return nil, errors.New("recording: already started")
	}

	at := l.now()
	name := SessionFilename(l.prefix, at)
	s := &Session{
		ID:        uuid.NewString(),
		Filename:  name,
		Path:      filepath.Join(l.dir, name),
		StartedAt: at,
	}

	_, span := observability.StartSpan(ctx, "recording.start",
		observability.AttrSessionID.String(s.ID),
		observability.AttrFile.String(s.Filename),
	)
	if err := l.enc.Open(s.Path); err != nil {
		err = fmt.Errorf("%w: open %s: %v", ErrDisabled, s.Path, err)
		observability.EndSpanWithError(span, err)
		l.logger.Warn("recording disabled", zap.Error(err))
		return nil, err
	}
	span.End()

	s.active.Store(true)
	l.session.Store(s)
	l.notify(func(o Observer) { o.SetRecording(true) })
	l.logger.Info("recording started",
		zap.String("session_id", s.ID),
		zap.String("file", s.Path),
	)
	return s, nil
}

// Session returns the current session, or nil when recording is disabled.
func (l *Lifecycle) Session() *Session {
	return l.session.Load()
}

// Filename returns the session file name, or "" when recording is disabled.
func (l *Lifecycle) Filename() string {
	if s := l.session.Load(); s != nil {
		return s.Filename
	}
	return ""
}

// WriteFrame forwards one frame to the encoder while the session is active.
// Failures are counted and logged, never returned: a bad frame must not stop
// the main loop.
func (l *Lifecycle) WriteFrame(data []byte) {
	s := l.session.Load()
	if s == nil || !s.Active() {
		return
	}

	l.wmu.Lock()
	defer l.wmu.Unlock()
	if !s.Active() {
		return
	}
	if err := l.enc.WriteFrame(data); err != nil {
		n := l.failures.Add(1)
		l.notify(Observer.RecordFrameWriteFailure)
		if n == 1 || n%100 == 0 {
			l.logger.Warn("frame write failed", zap.Error(err), zap.Uint64("failures", n))
		}
	}
}

// RequestStop closes the session to new frames and schedules finalization on
// the Run goroutine. It never blocks, so it is safe to call with the
// workflow lock held.
func (l *Lifecycle) RequestStop() {
	s := l.session.Load()
	if s == nil || !s.active.CompareAndSwap(true, false) {
		return
	}
	l.notify(func(o Observer) { o.SetRecording(false) })
	select {
	case l.stopReq <- struct{}{}:
	default:
	}
}

// Run finalizes the session when RequestStop is called. It returns after the
// first stop or when ctx is done.
func (l *Lifecycle) Run(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-l.stopReq:
		l.logger.Info("workflow complete, finalizing recording")
		if err := l.Stop(context.WithoutCancel(ctx)); err != nil {
			l.logger.Error("recording finalize failed", zap.Error(err))
		}
	}
}

// Stop finalizes the session. Every call after the first returns the first
// call's result without touching the encoder.
func (l *Lifecycle) Stop(ctx context.Context) error {
	s := l.session.Load()
	if s == nil {
		return nil
	}

	s.closeOnce.Do(func() {
		if s.active.Swap(false) {
			l.notify(func(o Observer) { o.SetRecording(false) })
		}

		ctx, cancel := context.WithTimeout(ctx, l.stopTimeout)
		defer cancel()
		ctx, span := observability.StartSpan(ctx, "recording.stop",
			observability.AttrSessionID.String(s.ID),
			observability.AttrFile.String(s.Filename),
		)

		l.wmu.Lock()
		err := l.enc.Finalize(ctx)
		l.wmu.Unlock()

		observability.EndSpanWithError(span, err)
		if err != nil {
			s.closeErr = fmt.Errorf("recording: finalize %s: %w", s.Path, err)
			return
		}
		l.logger.Info("recording finalized",
			zap.String("session_id", s.ID),
			zap.String("file", s.Path),
			zap.Duration("duration", l.now().Sub(s.StartedAt)),
		)
	})
	return s.closeErr
}

// Archive copies the finalized session to secondary storage, at most once.
// It stops the session first if needed. Every failure is logged and
// swallowed.
func (l *Lifecycle) Archive(ctx context.Context) {
	s := l.session.Load()
	if s == nil {
		l.logger.Info("archive skipped: no recording")
		l.recordArchive("skipped")
		return
	}
	if l.archiver == nil {
		l.recordArchive("skipped")
		return
	}

	s.archiveOnce.Do(func() {
		if err := l.Stop(ctx); err != nil {
			l.logger.Warn("archiving a session that failed to finalize", zap.Error(err))
		}

		ctx, span := observability.StartSpan(ctx, "recording.archive",
			observability.AttrSessionID.String(s.ID),
			observability.AttrFile.String(s.Filename),
		)
		dst, err := l.archiver.Archive(ctx, s.Path)
		observability.EndSpanWithError(span, err)
		if err != nil {
			l.logger.Error("archive failed", zap.String("file", s.Path), zap.Error(err))
			l.recordArchive("failure")
			return
		}
		l.logger.Info("recording archived", zap.String("destination", dst))
		l.recordArchive("success")
	})
}

func (l *Lifecycle) recordArchive(result string) {
	l.notify(func(o Observer) { o.RecordArchive(result) })
}

func (l *Lifecycle) notify(fn func(Observer)) {
	for _, o := range l.observers {
		fn(o)
	}
}
