package delivery

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/alanensastegui/subsights-demo/backend/internal/domain/target"
	"github.com/alanensastegui/subsights-demo/backend/internal/domain/telemetry"
	"github.com/alanensastegui/subsights-demo/backend/internal/shared/id"
	"github.com/alanensastegui/subsights-demo/backend/internal/shared/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const signalBuffer = 8

// ErrAlreadyRunning is returned when Run is called twice on one View.
var ErrAlreadyRunning = errors.New("view already running")

// Surface shows render instructions to the visitor.
type Surface interface {
	Render(ctx context.Context, r Render) error
	Settled(ctx context.Context, mode types.Mode) error
}

// Recorder persists orchestration events. *telemetry.Store satisfies it.
type Recorder interface {
	Record(ctx context.Context, in telemetry.Input) (telemetry.Event, error)
}

// Prober answers whether a target is likely embeddable.
type Prober interface {
	Probe(ctx context.Context, t target.Target) (allowed bool, detail string)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, t target.Target) (bool, string)

func (f ProberFunc) Probe(ctx context.Context, t target.Target) (bool, string) { return f(ctx, t) }

// Observer is told about transitions and settles, for metrics.
type Observer interface {
	Transition(slug string, from, to State, reason types.Reason)
	Settled(slug string, mode types.Mode, elapsed time.Duration)
}

// Timeouts bounds each suspension point.
type Timeouts struct {
	Proxy time.Duration
	Embed time.Duration
	Probe time.Duration
}

// DefaultTimeouts returns the production wait bounds.
func DefaultTimeouts() Timeouts {
	return Timeouts{Proxy: 7 * time.Second, Embed: 5 * time.Second, Probe: 3 * time.Second}
}

// Config wires a View.
type Config struct {
	Target   target.Target
	Session  string
	Forced   types.Mode
	Timeouts Timeouts
	Surface  Surface
	Recorder Recorder
	Prober   Prober
	Observer Observer
	Logger   *zap.Logger
}

// View is the state machine for one page view.
type View struct {
	id       id.ViewID
	target   target.Target
	session  string
	forced   types.Mode
	timeouts Timeouts
	surface  Surface
	recorder Recorder
	prober   Prober
	observer Observer
	logger   *zap.Logger

	signals chan Signal
	settled atomic.Bool
	running atomic.Bool
	state   atomic.Value
	done    chan struct{}

	// owned by the Run goroutine
	attempt     Attempt
	transitions []Transition
}

// NewView creates a View. Zero timeouts take DefaultTimeouts values.
func NewView(cfg Config) *View {
	defaults := DefaultTimeouts()
	if cfg.Timeouts.Proxy <= 0 {
		cfg.Timeouts.Proxy = defaults.Proxy
	}
	if cfg.Timeouts.Embed <= 0 {
		cfg.Timeouts.Embed = defaults.Embed
	}
	if cfg.Timeouts.Probe <= 0 {
		cfg.Timeouts.Probe = defaults.Probe
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Prober == nil {
		cfg.Prober = ProberFunc(func(context.Context, target.Target) (bool, string) { return false, "no prober" })
	}

	v := &View{
		id:       id.NewViewID(),
		target:   cfg.Target,
		session:  cfg.Session,
		forced:   cfg.Forced,
		timeouts: cfg.Timeouts,
		surface:  cfg.Surface,
		recorder: cfg.Recorder,
		prober:   cfg.Prober,
		observer: cfg.Observer,
		signals:  make(chan Signal, signalBuffer),
		done:     make(chan struct{}),
	}
	v.logger = cfg.Logger.With(zap.String("view_id", v.id.String()), zap.String("slug", cfg.Target.Slug))
	v.state.Store(stateFor(cfg.Forced))
	return v
}

// ID returns the view identifier.
func (v *View) ID() id.ViewID { return v.id }

// State returns the current state.
func (v *View) State() State { return v.state.Load().(State) }

// Done is closed when Run returns.
func (v *View) Done() <-chan struct{} { return v.done }

// Deliver queues a client signal. It reports false once the view has
// settled or when the queue is full; such signals have no effect.
func (v *View) Deliver(sig Signal) bool {
	if v.settled.Load() {
		return false
	}
	select {
	case v.signals <- sig:
		return true
	default:
		v.logger.Warn("dropping signal, queue full", zap.String("kind", string(sig.Kind)))
		return false
	}
}

// Run drives the view to settled. It returns early with ctx.Err() when the
// visitor goes away; every timer is stopped before Run returns.
func (v *View) Run(ctx context.Context) (Outcome, error) {
	if !v.running.CompareAndSwap(false, true) {
		return Outcome{}, ErrAlreadyRunning
	}
	start := time.Now()
	defer close(v.done)

	state := stateFor(v.forced)
	if v.forced.Valid() {
		v.record(ctx, types.ReasonForcePolicy, v.forced, map[string]interface{}{"forced": string(v.forced)}, nil)
		v.logger.Info("forced delivery mode", zap.String("mode", v.forced.String()))
	}

	var (
		mode types.Mode
		err  error
	)
	for state != StateSettled && err == nil {
		v.state.Store(state)
		var next State
		switch state {
		case StateProxyPending:
			next, mode, err = v.runProxy(ctx)
		case StateEmbedPending:
			next, mode, err = v.runEmbed(ctx)
		case StateDefaultActive:
			next, mode, err = v.runDefault(ctx)
		}
		if err == nil && next != StateSettled {
			v.logger.Debug("delivery transition",
				zap.String("from", state.String()),
				zap.String("to", next.String()),
			)
		}
		state = next
	}

	v.settled.Store(true)
	v.state.Store(StateSettled)
	out := Outcome{Mode: mode, Transitions: v.transitions, Duration: time.Since(start)}
	if err != nil {
		v.logger.Debug("view abandoned", zap.Error(err))
		return out, err
	}

	if v.observer != nil {
		v.observer.Settled(v.target.Slug, mode, out.Duration)
	}
	v.logger.Info("view settled",
		zap.String("mode", mode.String()),
		zap.Duration("elapsed", out.Duration),
		zap.Int("fallbacks", len(v.transitions)),
	)
	if serr := v.surface.Settled(ctx, mode); serr != nil {
		v.logger.Debug("failed to send settle notice", zap.Error(serr))
	}
	return out, nil
}

func (v *View) begin(ctx context.Context, mode types.Mode, src string) (Attempt, error) {
	v.attempt = Attempt{Mode: mode, ID: uuid.NewString(), Started: time.Now()}
	if src == "" {
		src = v.src(mode, v.attempt.ID)
	}
	err := v.surface.Render(ctx, Render{Mode: mode, Attempt: v.attempt.ID, Src: src})
	return v.attempt, err
}

func (v *View) src(mode types.Mode, attempt string) string {
	switch mode {
	case types.ModeProxy:
		return "/api/demo/" + v.target.Slug + "/proxy?attempt=" + attempt
	case types.ModeEmbed:
		return v.target.BaseURL
	default:
		return "/api/demo/" + v.target.Slug + "/default"
	}
}

func (v *View) runProxy(ctx context.Context) (State, types.Mode, error) {
	attempt, err := v.begin(ctx, types.ModeProxy, "")
	if err != nil {
		return "", "", err
	}

	timer := time.NewTimer(v.timeouts.Proxy)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", "", ctx.Err()
		case <-timer.C:
			return v.leaveProxy(ctx, types.ReasonProxyTimeout, nil)
		case sig := <-v.signals:
			if !v.matches(sig, SignalProxyStatus, attempt) {
				continue
			}
			if sig.Status == types.StatusOK {
				return StateSettled, types.ModeProxy, nil
			}
			reason := sig.Reason
			if !reason.IsProxy() {
				reason = types.ReasonProxyError
			}
			return v.leaveProxy(ctx, reason, sig.Performance)
		}
	}
}

// leaveProxy applies the fallback policy after a proxy failure.
func (v *View) leaveProxy(ctx context.Context, reason types.Reason, perf *telemetry.Performance) (State, types.Mode, error) {
	meta := map[string]interface{}{"attempt": v.attempt.ID, "elapsedMs": time.Since(v.attempt.Started).Milliseconds()}

	if !v.target.AllowEmbedding {
		meta["next"] = string(types.ModeDefault)
		meta["policy"] = "embedding-disallowed"
		v.transition(ctx, StateProxyPending, StateDefaultActive, reason, types.ModeDefault, meta, perf)
		return StateDefaultActive, "", nil
	}

	pctx, cancel := context.WithTimeout(ctx, v.timeouts.Probe)
	allowed, detail := v.prober.Probe(pctx, v.target)
	cancel()
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	meta["probe"] = detail

	if !allowed {
		meta["next"] = string(types.ModeDefault)
		meta["proxyReason"] = string(reason)
		v.transition(ctx, StateProxyPending, StateDefaultActive, types.ReasonIframeProbeFailed, types.ModeDefault, meta, perf)
		return StateDefaultActive, "", nil
	}

	meta["next"] = string(types.ModeEmbed)
	v.transition(ctx, StateProxyPending, StateEmbedPending, reason, types.ModeEmbed, meta, perf)
	return StateEmbedPending, "", nil
}

func (v *View) runEmbed(ctx context.Context) (State, types.Mode, error) {
	attempt, err := v.begin(ctx, types.ModeEmbed, "")
	if err != nil {
		return "", "", err
	}

	timer := time.NewTimer(v.timeouts.Embed)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", "", ctx.Err()
		case <-timer.C:
			meta := map[string]interface{}{"attempt": attempt.ID, "next": string(types.ModeDefault)}
			v.transition(ctx, StateEmbedPending, StateDefaultActive, types.ReasonIframeBlocked, types.ModeDefault, meta, nil)
			return StateDefaultActive, "", nil
		case sig := <-v.signals:
			if !v.matches(sig, SignalEmbedLoad, attempt) {
				continue
			}
			return StateSettled, types.ModeEmbed, nil
		}
	}
}

// runDefault renders the local page. It cannot fail over, so it settles at once.
func (v *View) runDefault(ctx context.Context) (State, types.Mode, error) {
	if _, err := v.begin(ctx, types.ModeDefault, ""); err != nil {
		return "", "", err
	}
	return StateSettled, types.ModeDefault, nil
}

func (v *View) matches(sig Signal, kind SignalKind, attempt Attempt) bool {
	if sig.Kind != kind || sig.Attempt != attempt.ID {
		v.logger.Debug("ignoring signal",
			zap.String("kind", string(sig.Kind)),
			zap.String("attempt", sig.Attempt),
			zap.String("active_attempt", attempt.ID),
		)
		return false
	}
	return true
}

func (v *View) transition(ctx context.Context, from, to State, reason types.Reason, chosen types.Mode, meta map[string]interface{}, perf *telemetry.Performance) {
	v.transitions = append(v.transitions, Transition{From: from, To: to, Reason: reason, At: time.Now()})
	if v.observer != nil {
		v.observer.Transition(v.target.Slug, from, to, reason)
	}
	v.logger.Info("delivery fallback",
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.String("reason", reason.String()),
	)
	v.record(ctx, reason, chosen, meta, perf)
}

func (v *View) record(ctx context.Context, reason types.Reason, chosen types.Mode, meta map[string]interface{}, perf *telemetry.Performance) {
	if v.recorder == nil {
		return
	}
	_, err := v.recorder.Record(context.WithoutCancel(ctx), telemetry.Input{
		Slug:        v.target.Slug,
		Reason:      reason,
		Mode:        chosen,
		SessionID:   v.session,
		Metadata:    meta,
		Performance: perf,
	})
	if err != nil {
		v.logger.Warn("orchestration event rejected", zap.Error(err))
	}
}
