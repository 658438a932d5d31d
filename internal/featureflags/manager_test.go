package featureflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestManagerEnabled(t *testing.T) {
	m := NewManager("item_reviews=on, dark_mode=off, beta_search=true, legacy_ui=0, noise, =, bad=")

	assert.True(t, m.Enabled("item_reviews", 1))
	assert.True(t, m.Enabled("beta_search", 1))
	assert.False(t, m.Enabled("dark_mode", 1))
	assert.False(t, m.Enabled("legacy_ui", 1))

	// Unknown flags and malformed entries default to off.
	assert.False(t, m.Enabled("noise", 1))
	assert.False(t, m.Enabled("bad", 1))
	assert.False(t, m.Enabled("never_configured", 1))

	// Lookup is case and whitespace insensitive.
	assert.True(t, m.Enabled(" Item_Reviews ", 1))
}

func TestManagerEnabled_NilManager(t *testing.T) {
	var m *Manager
	assert.False(t, m.Enabled("item_reviews", 1))
}

func TestManagerEnabled_PercentRollout(t *testing.T) {
	m := NewManager("gradual=25%")

	// The bucket is a pure function of flag name and user ID, so a user's
	// verdict never flips between evaluations.
	for userID := uint(1); userID <= 50; userID++ {
		first := m.Enabled("gradual", userID)
		for i := 0; i < 3; i++ {
			assert.Equal(t, first, m.Enabled("gradual", userID), "user %d", userID)
		}
	}

	// Anonymous users never join a partial rollout.
	assert.False(t, m.Enabled("gradual", 0))

	assert.True(t, NewManager("full=100%").Enabled("full", 0))
	assert.False(t, NewManager("none=0%").Enabled("none", 7))
	assert.False(t, NewManager("junk=x%").Enabled("junk", 7))
}

func TestManagerEnabled_PercentCoverage(t *testing.T) {
	m := NewManager("half=50%")

	enabled := 0
	for userID := uint(1); userID <= 1000; userID++ {
		if m.Enabled("half", userID) {
			enabled++
		}
	}
	// fnv buckets are not perfectly uniform but a 50% rollout over a
	// thousand users should land well inside this band.
	assert.Greater(t, enabled, 350)
	assert.Less(t, enabled, 650)
}

func TestManagerSnapshot(t *testing.T) {
	m := NewManager("item_reviews=on,dark_mode=off")

	snap := m.Snapshot(42)
	assert.Equal(t, map[string]bool{
		"item_reviews": true,
		"dark_mode":    false,
	}, snap)

	raw := m.Raw()
	assert.Equal(t, "on", raw["item_reviews"])

	// Raw returns a copy, not the live map.
	raw["item_reviews"] = "off"
	assert.True(t, m.Enabled("item_reviews", 42))
}
