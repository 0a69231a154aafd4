package telemetry

import (
	"testing"

	"github.com/alanensastegui/subsights-demo/backend/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	events := []Event{
		{Slug: "acme", Reason: types.ReasonProxyTimeout, Mode: types.ModeProxy, SessionID: "a", Performance: &Performance{LoadTimeMs: 100}},
		{Slug: "acme", Reason: types.ReasonIframeBlocked, Mode: types.ModeEmbed, SessionID: "a", Performance: &Performance{LoadTimeMs: 300}},
		{Slug: "globex", Reason: types.ReasonForcePolicy, Mode: types.ModeDefault, SessionID: "b"},
		{Slug: "globex", Reason: types.ReasonProxyError, Mode: types.ModeProxy, SessionID: "b", Performance: &Performance{LoadTimeMs: 200}},
	}

	sum := Summarize(events)
	assert.Equal(t, 4, sum.Total)
	assert.Equal(t, 2, sum.Sessions)
	assert.Equal(t, map[string]int{"acme": 2, "globex": 2}, sum.BySlug)
	assert.Equal(t, 2, sum.ByMode[types.ModeProxy])
	assert.Equal(t, 1, sum.ByReason[types.ReasonIframeBlocked])
	assert.InDelta(t, 0.25, sum.DefaultRate, 1e-9)

	require.NotNil(t, sum.LoadTime)
	assert.Equal(t, 3, sum.LoadTime.Samples)
	assert.InDelta(t, 200, sum.LoadTime.MeanMs, 1e-9)
	assert.InDelta(t, 200, sum.LoadTime.P50Ms, 1e-9)
	assert.InDelta(t, 300, sum.LoadTime.MaxMs, 1e-9)
}

func TestSummarizeEmpty(t *testing.T) {
	sum := Summarize(nil)
	assert.Zero(t, sum.Total)
	assert.Zero(t, sum.DefaultRate)
	assert.Nil(t, sum.LoadTime)
}
