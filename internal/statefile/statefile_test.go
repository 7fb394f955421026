package statefile

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldCheckTrueWhenFileMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "update-check.json")
	due, err := ShouldCheck(path, time.Unix(1000, 0), time.Hour)
	require.NoError(t, err)
	assert.True(t, due)
}

func TestRecordCheckThenShouldCheckRespectsInterval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "update-check.json")
	now := time.Unix(10_000, 0)
	require.NoError(t, RecordCheck(path, now))

	due, err := ShouldCheck(path, now.Add(30*time.Minute), time.Hour)
	require.NoError(t, err)
	assert.False(t, due)

	due, err = ShouldCheck(path, now.Add(2*time.Hour), time.Hour)
	require.NoError(t, err)
	assert.True(t, due)
}
