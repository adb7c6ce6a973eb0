package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRelease(t *testing.T) {
	assert.True(t, isRelease("1.4.2"))
	assert.True(t, isRelease("v2.0.0"))
	assert.False(t, isRelease("1.5.0-rc.1"))
	assert.False(t, isRelease("development"))
	assert.False(t, isRelease(""))
}

func TestGetVersionInfo(t *testing.T) {
	info := GetVersionInfo()
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, runtime.GOOS, info.Os)
	assert.False(t, info.Release)
}
