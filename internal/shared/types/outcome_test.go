package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMode(t *testing.T) {
	for _, m := range Modes {
		got, ok := ParseMode(string(m))
		assert.True(t, ok)
		assert.Equal(t, m, got)
	}

	_, ok := ParseMode("iframe")
	assert.False(t, ok)
	_, ok = ParseMode("")
	assert.False(t, ok)
}

func TestReasonSet(t *testing.T) {
	assert.Len(t, Reasons, 9)
	for _, r := range Reasons {
		assert.True(t, r.Valid(), r)
		assert.NotEqual(t, "Unknown reason.", r.Message(), r)
	}

	assert.False(t, Reason("proxy-ok").Valid())
	assert.True(t, ReasonProxyNotHTML.IsProxy())
	assert.False(t, ReasonIframeBlocked.IsProxy())
	assert.False(t, ReasonForcePolicy.IsProxy())
}
