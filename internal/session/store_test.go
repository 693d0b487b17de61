package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSessionDuration(t *testing.T) {
	for name, tc := range map[string]struct {
		label    string
		expected time.Duration
	}{
		"seconds":          {"45s", 45 * time.Second},
		"minutes":          {"15m", 15 * time.Minute},
		"hours":            {"2h", 2 * time.Hour},
		"days":             {"1d", 24 * time.Hour},
		"uppercase hour":   {"2H", 2 * time.Hour},
		"no suffix":        {"30", 30 * time.Minute},
		"unknown suffix":   {"15min", 15 * time.Minute},
		"empty":            {"", 0},
		"garbage":          {"abc", 0},
		"suffix only":      {"m", 0},
		"surrounding ws":   {" 10m ", 10 * time.Minute},
		"zero":             {"0s", 0},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseSessionDuration(tc.label))
		})
	}
}

func TestStore_SetCredential_Remaining(t *testing.T) {
	now := time.Now()
	store := NewStore(NewMemoryBackend())
	store.NowFunc = func() time.Time { return now }

	for _, label := range []string{"45s", "15m", "2h", "1d", "30"} {
		store.SetCredential("test-token", label)
		assert.Equal(t, ParseSessionDuration(label), store.Remaining(), "label %q", label)
		assert.True(t, store.IsValid())
	}
}

func TestStore_RoundTrip(t *testing.T) {
	store := NewStore(NewMemoryBackend())
	store.SetCredential("test-token", "15m")

	token, ok := store.Token()
	require.True(t, ok)
	assert.Equal(t, "test-token", token)

	label, ok := store.DurationLabel()
	require.True(t, ok)
	assert.Equal(t, "15m", label)

	store.Clear()
	_, ok = store.Token()
	assert.False(t, ok)
	_, ok = store.DurationLabel()
	assert.False(t, ok)
}

func TestStore_NeverWritten(t *testing.T) {
	store := NewStore(NewMemoryBackend())

	assert.True(t, store.IsExpired())
	assert.False(t, store.IsValid())
	assert.Equal(t, time.Duration(0), store.Remaining())
	assert.Equal(t, "Expired", store.FormattedRemaining())

	_, ok := store.Token()
	assert.False(t, ok)

	// clear on an empty store is a safe no-op, repeatedly
	store.Clear()
	store.Clear()
	assert.True(t, store.IsExpired())
}

func TestStore_ExpiredAfterClear(t *testing.T) {
	store := NewStore(NewMemoryBackend())
	store.SetCredential("test-token", "15m")
	require.False(t, store.IsExpired())

	store.Clear()
	assert.True(t, store.IsExpired())
	assert.Equal(t, "Expired", store.FormattedRemaining())
}

func TestStore_MalformedLabelFailsClosed(t *testing.T) {
	store := NewStore(NewMemoryBackend())
	store.SetCredential("test-token", "whenever")

	// the token is stored, but already expired
	token, ok := store.Token()
	require.True(t, ok)
	assert.Equal(t, "test-token", token)
	assert.True(t, store.IsExpired())
	assert.False(t, store.IsValid())
}

func TestStore_Expiry(t *testing.T) {
	now := time.Now()
	store := NewStore(NewMemoryBackend())
	store.NowFunc = func() time.Time { return now }

	store.SetCredential("test-token", "15m")
	require.False(t, store.IsExpired())

	// one second before expiry
	store.NowFunc = func() time.Time { return now.Add(15*time.Minute - time.Second) }
	assert.False(t, store.IsExpired())
	assert.True(t, store.IsValid())

	// just past expiry
	store.NowFunc = func() time.Time { return now.Add(15*time.Minute + time.Millisecond) }
	assert.True(t, store.IsExpired())
	assert.False(t, store.IsValid())
	assert.Equal(t, time.Duration(0), store.Remaining())
}

func TestStore_FormattedRemaining(t *testing.T) {
	now := time.Now()
	store := NewStore(NewMemoryBackend())
	store.NowFunc = func() time.Time { return now }

	for name, tc := range map[string]struct {
		label    string
		expected string
	}{
		"hours and minutes": {"2h", "2h 0m"},
		"over an hour":      {"90m", "1h 30m"},
		"minutes seconds":   {"15m", "15m 0s"},
		"exactly one hour":  {"1h", "60m 0s"}, // 60 whole minutes is not "over an hour"
		"under a minute":    {"45s", "45s"},
	} {
		t.Run(name, func(t *testing.T) {
			store.SetCredential("test-token", tc.label)
			assert.Equal(t, tc.expected, store.FormattedRemaining())
		})
	}
}

func TestStore_FormattedRemainingCountsDown(t *testing.T) {
	now := time.Now()
	store := NewStore(NewMemoryBackend())
	store.NowFunc = func() time.Time { return now }

	store.SetCredential("test-token", "2m")
	assert.Equal(t, "2m 0s", store.FormattedRemaining())

	store.NowFunc = func() time.Time { return now.Add(61 * time.Second) }
	assert.Equal(t, "59s", store.FormattedRemaining())

	store.NowFunc = func() time.Time { return now.Add(3 * time.Minute) }
	assert.Equal(t, "Expired", store.FormattedRemaining())
}
