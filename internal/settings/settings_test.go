package settings

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	s := New(false, 0)
	assert.False(t, s.ShortenerEnabled())
	assert.Zero(t, s.AutoDelete())
}

func TestToggleShortener(t *testing.T) {
	s := New(false, 0)

	assert.True(t, s.ToggleShortener())
	assert.True(t, s.ShortenerEnabled())
	assert.False(t, s.ToggleShortener())
	assert.False(t, s.ShortenerEnabled())
}

func TestToggleShortenerConcurrent(t *testing.T) {
	s := New(true, 0)
	var wg sync.WaitGroup
	for range 101 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.ToggleShortener()
		}()
	}
	wg.Wait()
	assert.False(t, s.ShortenerEnabled())
}

func TestAutoDelete(t *testing.T) {
	s := New(false, 3)
	assert.Equal(t, 3*time.Second, s.AutoDelete())

	s.SetAutoDelete(5)
	assert.Equal(t, 5*time.Second, s.AutoDelete())

	s.SetAutoDelete(0)
	assert.Zero(t, s.AutoDelete())
}

func TestAutoDeleteClamped(t *testing.T) {
	s := New(false, 0)

	s.SetAutoDelete(9300000000)
	assert.Equal(t, time.Duration(MaxAutoDelete)*time.Second, s.AutoDelete())
	assert.Positive(t, s.AutoDelete())

	s.SetAutoDelete(-4)
	assert.Zero(t, s.AutoDelete())

	assert.Positive(t, New(false, 9300000000).AutoDelete())
}
