// Package settings keeps the runtime toggles changed by admin commands.
// Values live in memory only and start from configuration on every run.
package settings

import (
	"math"
	"sync/atomic"
	"time"
)

type Settings struct {
	shortener  atomic.Bool
	autoDelete atomic.Int64
}

func New(shortenerEnabled bool, autoDeleteSeconds int) *Settings {
	s := &Settings{}
	s.shortener.Store(shortenerEnabled)
	s.SetAutoDelete(autoDeleteSeconds)
	return s
}

func (s *Settings) ShortenerEnabled() bool {
	return s.shortener.Load()
}

// ToggleShortener flips the shortener flag and returns the new value.
func (s *Settings) ToggleShortener() bool {
	for {
		old := s.shortener.Load()
		if s.shortener.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// AutoDelete is the delay after which replies are removed, zero when off.
func (s *Settings) AutoDelete() time.Duration {
	return time.Duration(s.autoDelete.Load()) * time.Second
}

// MaxAutoDelete is the largest delay, in seconds, that fits a time.Duration.
const MaxAutoDelete = int64(math.MaxInt64 / int64(time.Second))

// SetAutoDelete stores the delay, clamped to [0, MaxAutoDelete].
func (s *Settings) SetAutoDelete(seconds int) {
	n := int64(seconds)
	switch {
	case n < 0:
		n = 0
	case n > MaxAutoDelete:
		n = MaxAutoDelete
	}
	s.autoDelete.Store(n)
}
