package session

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// storage keys, kept compatible with the dashboard frontend layout
const (
	tokenKey         = "token"
	tokenExpiryKey   = "tokenExpiryEpochMs"
	durationLabelKey = "sessionDurationLabel"
)

// Store holds the access token, its absolute expiry and the human-readable
// session duration label. The expiry is computed exactly once, when the
// credential is written; the label is kept for display only and never
// re-parsed afterwards.
//
// All operations fall back to "no credential" when the backend has nothing
// stored or returns garbage.
type Store struct {
	backend Backend
	// NowFunc is the time source, swappable in tests
	NowFunc func() time.Time
}

func NewStore(backend Backend) *Store {
	return &Store{
		backend: backend,
		NowFunc: time.Now,
	}
}

// ParseSessionDuration converts a server-supplied duration label into a
// duration. The unit is selected by the trailing character (s, m, h or d);
// a missing or unrecognized suffix means minutes, which some older backend
// responses rely on. A label without a leading integer yields zero, i.e. an
// immediately expired credential.
func ParseSessionDuration(label string) time.Duration {
	label = strings.TrimSpace(label)
	if label == "" {
		return 0
	}

	unit := time.Minute
	switch label[len(label)-1] {
	case 's', 'S':
		unit = time.Second
	case 'm', 'M':
		unit = time.Minute
	case 'h', 'H':
		unit = time.Hour
	case 'd', 'D':
		unit = 24 * time.Hour
	}

	digits := 0
	for digits < len(label) && label[digits] >= '0' && label[digits] <= '9' {
		digits++
	}
	value, err := strconv.Atoi(label[:digits])
	if err != nil {
		return 0
	}

	return time.Duration(value) * unit
}

// SetCredential stores the token together with its absolute expiry, derived
// from the duration label at this very moment. Malformed labels produce an
// already-expired credential rather than an error.
func (s *Store) SetCredential(token, durationLabel string) {
	expiry := s.NowFunc().Add(ParseSessionDuration(durationLabel))

	err := multierr.Combine(
		s.backend.Set(tokenKey, token),
		s.backend.Set(tokenExpiryKey, strconv.FormatInt(expiry.UnixMilli(), 10)),
		s.backend.Set(durationLabelKey, durationLabel),
	)
	if err != nil {
		log.Errorf("credential store: persist credential: %s", err)
	}
}

func (s *Store) Token() (string, bool) {
	token, ok := s.backend.Get(tokenKey)
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

func (s *Store) DurationLabel() (string, bool) {
	label, ok := s.backend.Get(durationLabelKey)
	if !ok || label == "" {
		return "", false
	}
	return label, true
}

// IsExpired reports whether the stored credential is past its expiry. No
// stored expiry, or an unreadable one, counts as expired.
func (s *Store) IsExpired() bool {
	expiryMs, ok := s.expiryEpochMs()
	if !ok {
		return true
	}
	return s.NowFunc().UnixMilli() > expiryMs
}

func (s *Store) IsValid() bool {
	_, ok := s.Token()
	return ok && !s.IsExpired()
}

// Remaining returns the time until expiry, floored at zero.
func (s *Store) Remaining() time.Duration {
	expiryMs, ok := s.expiryEpochMs()
	if !ok {
		return 0
	}
	remaining := time.Duration(expiryMs-s.NowFunc().UnixMilli()) * time.Millisecond
	if remaining < 0 {
		return 0
	}
	return remaining
}

// FormattedRemaining renders the remaining session time for display. It is
// recomputed from the stored expiry on every call.
func (s *Store) FormattedRemaining() string {
	remaining := s.Remaining()
	if remaining <= 0 {
		return "Expired"
	}

	minutes := int(remaining / time.Minute)
	seconds := int(remaining/time.Second) % 60

	if minutes > 60 {
		return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// Clear removes all persisted entries. Idempotent; backend failures are
// logged and swallowed so that a teardown can never be blocked by storage.
func (s *Store) Clear() {
	err := multierr.Combine(
		s.backend.Delete(tokenKey),
		s.backend.Delete(tokenExpiryKey),
		s.backend.Delete(durationLabelKey),
	)
	if err != nil {
		log.Errorf("credential store: clear: %s", err)
	}
}

func (s *Store) expiryEpochMs() (int64, bool) {
	raw, ok := s.backend.Get(tokenExpiryKey)
	if !ok {
		return 0, false
	}
	expiryMs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return expiryMs, true
}
