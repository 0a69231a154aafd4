package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alanensastegui/subsights-demo/backend/internal/infrastructure/storage"
	"github.com/alanensastegui/subsights-demo/backend/internal/shared/id"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

const (
	DefaultKey      = "subsights:demo-events"
	DefaultCapacity = 100

	sinkTimeout = 5 * time.Second
)

// Sink receives every recorded event.
type Sink interface {
	Name() string
	Report(ctx context.Context, e Event) error
}

// Store is the event telemetry store.
type Store struct {
	log           storage.Log
	key           string
	capacity      int
	session       id.SessionID
	ids           *id.Generator
	now           func() time.Time
	sinks         []Sink
	logger        *zap.Logger
	onSinkFailure func(sink string)

	// serializes read-modify-write cycles against the log
	mu       sync.Mutex
	inflight sync.WaitGroup
}

// Option configures a Store.
type Option func(*Store)

func WithKey(key string) Option            { return func(s *Store) { s.key = key } }
func WithCapacity(n int) Option            { return func(s *Store) { s.capacity = n } }
func WithSession(sid id.SessionID) Option  { return func(s *Store) { s.session = sid } }
func WithGenerator(g *id.Generator) Option { return func(s *Store) { s.ids = g } }
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}
func WithLogger(l *zap.Logger) Option { return func(s *Store) { s.logger = l } }
func WithSinks(sinks ...Sink) Option  { return func(s *Store) { s.sinks = append(s.sinks, sinks...) } }

// WithSinkFailureHook is called with the sink name whenever a sink errors or panics.
func WithSinkFailureHook(fn func(sink string)) Option {
	return func(s *Store) { s.onSinkFailure = fn }
}

// NewStore creates a store over log. Without WithSession the store
// generates one session for the process lifetime.
func NewStore(log storage.Log, opts ...Option) *Store {
	s := &Store{
		log:      log,
		key:      DefaultKey,
		capacity: DefaultCapacity,
		ids:      id.Default(),
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.session == "" {
		s.session = s.ids.NewSessionID()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Session returns the fallback session identifier.
func (s *Store) Session() id.SessionID { return s.session }

// Record validates, stamps, persists, and reports an event. Only
// validation failures are returned; persistence and sink failures are
// logged.
func (s *Store) Record(ctx context.Context, in Input) (Event, error) {
	if err := in.Validate(); err != nil {
		s.logger.Warn("rejected orchestration event",
			zap.String("slug", in.Slug),
			zap.String("reason", string(in.Reason)),
			zap.String("mode", string(in.Mode)),
			zap.Error(err),
		)
		return Event{}, err
	}

	session := in.SessionID
	if session == "" {
		session = s.session.String()
	}
	event := Event{
		ID:          s.ids.NewEventID().String(),
		Slug:        in.Slug,
		Reason:      in.Reason,
		Mode:        in.Mode,
		Timestamp:   s.now().UnixMilli(),
		SessionID:   session,
		Metadata:    in.Metadata,
		Performance: in.Performance,
	}

	if err := s.persist(ctx, event); err != nil {
		s.logger.Warn("failed to persist orchestration event",
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
	}

	s.fanOut(event)
	return event, nil
}

func (s *Store) persist(ctx context.Context, event Event) error {
	encoded, err := sonic.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, dirty, err := s.readValid(ctx)
	if err != nil {
		return err
	}
	if !dirty {
		return s.log.PushFront(ctx, s.key, encoded, s.capacity)
	}

	// Rewrite a clean buffer when anything on disk failed validation.
	records := make([][]byte, 0, len(existing)+1)
	records = append(records, encoded)
	for _, e := range existing {
		if len(records) >= s.capacity {
			break
		}
		raw, err := sonic.Marshal(e)
		if err != nil {
			continue
		}
		records = append(records, raw)
	}
	s.logger.Info("rewrote telemetry buffer after dropping malformed entries", zap.String("key", s.key))
	return s.log.Replace(ctx, s.key, records)
}

// readValid decodes the stored log. dirty reports whether anything was
// dropped. Corrupt storage reads as empty.
func (s *Store) readValid(ctx context.Context) ([]Event, bool, error) {
	raw, err := s.log.ReadAll(ctx, s.key)
	if errors.Is(err, storage.ErrCorrupt) {
		s.logger.Warn("telemetry buffer is corrupt; treating as empty", zap.Error(err))
		return nil, true, nil
	}
	if err != nil {
		return nil, false, err
	}

	events := make([]Event, 0, len(raw))
	dirty := false
	for _, r := range raw {
		var e Event
		if err := sonic.Unmarshal(r, &e); err != nil {
			dirty = true
			continue
		}
		if err := e.Validate(); err != nil {
			dirty = true
			continue
		}
		events = append(events, e)
	}
	return events, dirty, nil
}

// List returns stored events newest first, skipping malformed entries.
// Storage errors read as an empty list.
func (s *Store) List(ctx context.Context) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, _, err := s.readValid(ctx)
	if err != nil {
		s.logger.Warn("failed to read telemetry buffer", zap.Error(err))
		return []Event{}, nil
	}
	return events, nil
}

// Clear removes every stored event.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.log.Clear(ctx, s.key); err != nil {
		return fmt.Errorf("clear telemetry: %w", err)
	}
	return nil
}

// Close waits for in-flight sink deliveries.
func (s *Store) Close() {
	s.inflight.Wait()
}

func (s *Store) fanOut(event Event) {
	for _, sink := range s.sinks {
		s.inflight.Add(1)
		go func(sink Sink) {
			defer s.inflight.Done()
			s.deliver(sink, event)
		}(sink)
	}
}

func (s *Store) deliver(sink Sink, event Event) {
	defer func() {
		if r := recover(); r != nil {
			s.sinkFailed(sink, fmt.Errorf("panic: %v", r), event)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()

	if err := sink.Report(ctx, event); err != nil {
		s.sinkFailed(sink, err, event)
	}
}

func (s *Store) sinkFailed(sink Sink, err error, event Event) {
	s.logger.Warn("reporting sink failed",
		zap.String("sink", sink.Name()),
		zap.String("event_id", event.ID),
		zap.Error(err),
	)
	if s.onSinkFailure != nil {
		s.onSinkFailure(sink.Name())
	}
}
