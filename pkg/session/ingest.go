package session

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/kestrel-dev/ragpanel/pkg/observe"
	"github.com/kestrel-dev/ragpanel/pkg/ragapi"
	"github.com/kestrel-dev/ragpanel/pkg/reveal"
)

// Ingester is the slice of the backend client the ingest session needs.
type Ingester interface {
	Ingest(ctx context.Context, req ragapi.IngestRequest) (*ragapi.IngestResult, error)
}

// IngestConfig holds the tunables of the ingest lifecycle. Zero values are
// replaced by the reference defaults.
type IngestConfig struct {
	// ProgressInterval is the cadence of the cosmetic progress bar.
	ProgressInterval time.Duration
	// ProgressStep is the increment per progress tick.
	ProgressStep int
	// ProgressCeiling is the highest value the simulated bar reaches on
	// its own; only a real completion forces it to 100.
	ProgressCeiling int
	// SuccessDwell is how long the success toast stays before the session
	// auto-resets to idle.
	SuccessDwell time.Duration
	// MaxIngestBytes bounds file plus text size before any network call.
	MaxIngestBytes int
}

func (c IngestConfig) withDefaults() IngestConfig {
	if c.ProgressInterval == 0 {
		c.ProgressInterval = 200 * time.Millisecond
	}
	if c.ProgressStep == 0 {
		c.ProgressStep = 10
	}
	if c.ProgressCeiling == 0 {
		c.ProgressCeiling = 90
	}
	if c.SuccessDwell == 0 {
		c.SuccessDwell = 4 * time.Second
	}
	if c.MaxIngestBytes == 0 {
		c.MaxIngestBytes = 10 << 20
	}
	return c
}

// IngestView is the render-ready state of the ingest session.
type IngestView struct {
	Phase    Phase
	Progress int
	Chunks   int
	Error    string
}

// IngestSession drives one ingestion at a time: validate, in-flight with a
// simulated progress bar, then success (transient, auto-resetting) or
// failure. Submissions while in flight are rejected.
type IngestSession struct {
	mu       sync.Mutex
	client   Ingester
	clock    reveal.Clock
	cfg      IngestConfig
	log      zerolog.Logger
	metrics  *observe.Metrics
	validate *validator.Validate
	onReset  func()

	// gen invalidates the progress ticker, the pending completion and the
	// auto-reset timer whenever the session leaves its current run.
	gen      uint64
	phase    Phase
	progress int
	chunks   int
	errMsg   string
	timer    reveal.Timer
}

// IngestOption configures an IngestSession.
type IngestOption func(*IngestSession)

// WithIngestClock sets the timer source.
func WithIngestClock(c reveal.Clock) IngestOption {
	return func(s *IngestSession) { s.clock = c }
}

// WithIngestConfig overrides the lifecycle tunables.
func WithIngestConfig(cfg IngestConfig) IngestOption {
	return func(s *IngestSession) { s.cfg = cfg.withDefaults() }
}

// WithIngestLogger sets the session logger.
func WithIngestLogger(log zerolog.Logger) IngestOption {
	return func(s *IngestSession) {
		s.log = log.With().Str("component", "ingest").Logger()
	}
}

// WithIngestMetrics attaches Prometheus instrumentation.
func WithIngestMetrics(m *observe.Metrics) IngestOption {
	return func(s *IngestSession) { s.metrics = m }
}

// WithIngestResetHook sets a callback invoked when the session auto-resets
// after success, so the front end can clear its input fields.
func WithIngestResetHook(f func()) IngestOption {
	return func(s *IngestSession) { s.onReset = f }
}

// NewIngestSession creates an idle ingest session.
func NewIngestSession(client Ingester, opts ...IngestOption) *IngestSession {
	s := &IngestSession{
		client:   client,
		clock:    reveal.SystemClock(),
		cfg:      IngestConfig{}.withDefaults(),
		log:      zerolog.Nop(),
		validate: validator.New(),
		phase:    PhaseIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates req and, if valid, starts the ingestion. It returns
// ErrBusy while a prior ingestion is in flight and a ValidationError for
// missing or unacceptable input; neither reaches the network.
func (s *IngestSession) Submit(ctx context.Context, req ragapi.IngestRequest) error {
	s.mu.Lock()

	if s.phase == PhaseInFlight {
		s.mu.Unlock()
		return ErrBusy
	}

	req.Text = strings.TrimSpace(req.Text)
	if err := s.validateRequest(req); err != nil {
		s.errMsg = err.Reason
		s.mu.Unlock()
		return err
	}

	s.gen++
	gen := s.gen
	s.stopTimerLocked()
	s.phase = PhaseInFlight
	s.progress = 0
	s.chunks = 0
	s.errMsg = ""
	s.scheduleProgressLocked(gen)
	s.mu.Unlock()

	s.log.Info().Str("file", req.FileName).Int("text_len", len(req.Text)).
		Msg("ingest submitted")

	go func() {
		result, err := s.client.Ingest(ctx, req)
		s.complete(gen, result, err)
	}()
	return nil
}

func (s *IngestSession) validateRequest(req ragapi.IngestRequest) *ValidationError {
	if err := s.validate.Struct(req); err != nil {
		return &ValidationError{Reason: "Please upload a file or paste some text"}
	}
	if req.FileName != "" {
		switch strings.ToLower(filepath.Ext(req.FileName)) {
		case ".pdf", ".txt":
		default:
			return &ValidationError{Reason: "Please upload a PDF or TXT file"}
		}
	}
	if len(req.File)+len(req.Text) > s.cfg.MaxIngestBytes {
		return &ValidationError{Reason: "Document is too large to ingest"}
	}
	return nil
}

func (s *IngestSession) scheduleProgressLocked(gen uint64) {
	s.timer = s.clock.AfterFunc(s.cfg.ProgressInterval, func() { s.progressTick(gen) })
}

// progressTick advances the cosmetic bar up to the ceiling. It never
// reaches 100 on its own.
func (s *IngestSession) progressTick(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || s.phase != PhaseInFlight {
		return
	}
	s.progress += s.cfg.ProgressStep
	if s.progress >= s.cfg.ProgressCeiling {
		s.progress = s.cfg.ProgressCeiling
		s.timer = nil
		return
	}
	s.scheduleProgressLocked(gen)
}

func (s *IngestSession) complete(gen uint64, result *ragapi.IngestResult, err error) {
	s.mu.Lock()

	if gen != s.gen {
		// Completion for a run the session no longer tracks.
		s.mu.Unlock()
		return
	}

	// Invalidate the progress ticker regardless of outcome.
	s.gen++
	s.stopTimerLocked()

	if err != nil {
		s.phase = PhaseFailure
		s.progress = 0
		s.errMsg = ragapi.UserMessage(err)
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.IngestsTotal.WithLabelValues("failure").Inc()
		}
		s.log.Error().Err(err).Msg("ingest failed")
		return
	}

	s.phase = PhaseSuccess
	s.progress = 100
	s.chunks = result.Chunks()
	resetGen := s.gen
	s.timer = s.clock.AfterFunc(s.cfg.SuccessDwell, func() { s.reset(resetGen) })
	chunks := s.chunks
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.IngestsTotal.WithLabelValues("success").Inc()
	}
	s.log.Info().Int("chunks", chunks).Msg("ingest succeeded")
}

// reset returns the session to idle after the success dwell.
func (s *IngestSession) reset(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.gen++
	s.stopTimerLocked()
	s.phase = PhaseIdle
	s.progress = 0
	s.chunks = 0
	s.errMsg = ""
	onReset := s.onReset
	s.mu.Unlock()

	if onReset != nil {
		onReset()
	}
}

// View returns the current render state.
func (s *IngestSession) View() IngestView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return IngestView{
		Phase:    s.phase,
		Progress: s.progress,
		Chunks:   s.chunks,
		Error:    s.errMsg,
	}
}

func (s *IngestSession) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
