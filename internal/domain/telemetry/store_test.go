package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alanensastegui/subsights-demo/backend/internal/infrastructure/storage"
	"github.com/alanensastegui/subsights-demo/backend/internal/shared/id"
	"github.com/alanensastegui/subsights-demo/backend/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func newTestStore(t *testing.T, log storage.Log, opts ...Option) *Store {
	t.Helper()
	base := []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithSession("sess_fallback"),
	}
	s := NewStore(log, append(base, opts...)...)
	t.Cleanup(s.Close)
	return s
}

func validInput() Input {
	return Input{Slug: "acme", Reason: types.ReasonProxyTimeout, Mode: types.ModeProxy}
}

func TestRecordStampsEvent(t *testing.T) {
	store := newTestStore(t, storage.NewMemoryLog())

	event, err := store.Record(context.Background(), validInput())
	require.NoError(t, err)

	assert.True(t, id.IsValid(event.ID, id.EventPrefix))
	assert.Equal(t, fixedNow.UnixMilli(), event.Timestamp)
	assert.Equal(t, "sess_fallback", event.SessionID)

	events, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.ID, events[0].ID)
}

func TestRecordPrefersInputSession(t *testing.T) {
	store := newTestStore(t, storage.NewMemoryLog())

	in := validInput()
	in.SessionID = "sess_browser"
	event, err := store.Record(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "sess_browser", event.SessionID)
}

func TestNewStoreGeneratesSession(t *testing.T) {
	store := NewStore(storage.NewMemoryLog())
	assert.True(t, id.IsValid(store.Session().String(), id.SessionPrefix))
}

func TestRecordRejectsInvalidInput(t *testing.T) {
	cases := map[string]Input{
		"empty slug":       {Slug: " ", Reason: types.ReasonProxyError, Mode: types.ModeProxy},
		"unknown reason":   {Slug: "acme", Reason: "proxy-success", Mode: types.ModeProxy},
		"unknown mode":     {Slug: "acme", Reason: types.ReasonProxyError, Mode: "popup"},
		"negative timings": {Slug: "acme", Reason: types.ReasonProxyError, Mode: types.ModeProxy, Performance: &Performance{LoadTimeMs: -1}},
	}

	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			log := storage.NewMemoryLog()
			store := newTestStore(t, log, WithLogger(zap.New(core)))

			_, err := store.Record(context.Background(), in)
			assert.ErrorIs(t, err, ErrInvalidEvent)
			assert.Equal(t, 1, logs.FilterMessage("rejected orchestration event").Len())

			raw, err := log.ReadAll(context.Background(), DefaultKey)
			require.NoError(t, err)
			assert.Empty(t, raw)
		})
	}
}

func TestRecordKeepsNewestWithinCapacity(t *testing.T) {
	store := newTestStore(t, storage.NewMemoryLog())
	ctx := context.Background()

	var last Event
	for i := 0; i < DefaultCapacity+5; i++ {
		in := validInput()
		in.Slug = fmt.Sprintf("target-%d", i)
		e, err := store.Record(ctx, in)
		require.NoError(t, err)
		last = e
	}

	events, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, DefaultCapacity)
	assert.Equal(t, last.ID, events[0].ID)
	assert.Equal(t, "target-5", events[len(events)-1].Slug)
}

func TestRecordDropsMalformedEntries(t *testing.T) {
	log := storage.NewMemoryLog()
	ctx := context.Background()
	require.NoError(t, log.Replace(ctx, DefaultKey, [][]byte{
		[]byte(`not json`),
		[]byte(`{"id":"evt_x","slug":"acme","reason":"bogus","mode":"proxy","timestamp":1,"sessionId":"s"}`),
		[]byte(`{"id":"evt_y","slug":"acme","reason":"iframe-blocked","mode":"embed","timestamp":1,"sessionId":"s"}`),
	}))

	store := newTestStore(t, log)
	event, err := store.Record(ctx, validInput())
	require.NoError(t, err)

	raw, err := log.ReadAll(ctx, DefaultKey)
	require.NoError(t, err)
	require.Len(t, raw, 2)

	events, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, event.ID, events[0].ID)
	assert.Equal(t, "evt_y", events[1].ID)
}

func TestRecordSwallowsStorageFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	store := newTestStore(t, failingLog{}, WithLogger(zap.New(core)))

	event, err := store.Record(context.Background(), validInput())
	require.NoError(t, err)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, 1, logs.FilterMessage("failed to persist orchestration event").Len())

	events, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestClear(t *testing.T) {
	store := newTestStore(t, storage.NewMemoryLog())
	ctx := context.Background()

	_, err := store.Record(ctx, validInput())
	require.NoError(t, err)
	require.NoError(t, store.Clear(ctx))

	events, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestSinkFailuresAreIsolated(t *testing.T) {
	good := &recordingSink{}
	var failed []string
	var mu sync.Mutex

	store := newTestStore(t, storage.NewMemoryLog(),
		WithSinks(panicSink{}, errSink{}, good),
		WithSinkFailureHook(func(name string) {
			mu.Lock()
			defer mu.Unlock()
			failed = append(failed, name)
		}),
	)

	event, err := store.Record(context.Background(), validInput())
	require.NoError(t, err)
	store.Close()

	assert.Equal(t, []Event{event}, good.events())
	assert.ElementsMatch(t, []string{"panic", "error"}, failed)
}

type failingLog struct{}

var errStorage = errors.New("storage offline")

func (failingLog) PushFront(context.Context, string, []byte, int) error { return errStorage }
func (failingLog) ReadAll(context.Context, string) ([][]byte, error)    { return nil, errStorage }
func (failingLog) Replace(context.Context, string, [][]byte) error      { return errStorage }
func (failingLog) Clear(context.Context, string) error                  { return errStorage }
func (failingLog) Close() error                                         { return nil }

type recordingSink struct {
	mu  sync.Mutex
	got []Event
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Report(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, e)
	return nil
}

func (s *recordingSink) events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.got...)
}

type panicSink struct{}

func (panicSink) Name() string                        { return "panic" }
func (panicSink) Report(context.Context, Event) error { panic("boom") }

type errSink struct{}

func (errSink) Name() string                        { return "error" }
func (errSink) Report(context.Context, Event) error { return errors.New("unreachable") }
