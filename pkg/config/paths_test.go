package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheDirs(t *testing.T) {
	cache := GetCacheDir()
	assert.NotEmpty(t, cache)

	assert.Equal(t, filepath.Join(cache, "datasets"), GetDatasetCacheDir())
	assert.Equal(t, filepath.Join(cache, "vocab"), GetVocabCacheDir())
}

func TestGetConfigDir(t *testing.T) {
	assert.NotEmpty(t, GetConfigDir())
}
