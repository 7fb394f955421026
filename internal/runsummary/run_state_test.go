package runsummary

import (
	"testing"
	"time"

	"github.com/mitchellh/cli"
	"github.com/stretchr/testify/assert"
)

func TestRunStateCountsOutcomes(t *testing.T) {
	r := NewRunState(time.Now(), "")

	finish, _ := r.Run("build")
	finish(StepSuccess, nil)
	finish, _ = r.Run("test")
	finish(StepCached, nil)
	finish, _ = r.Run("lint")
	finish(StepSkipped, nil)

	assert.Equal(t, 1, r.Success)
	assert.Equal(t, 1, r.Cached)
	assert.Equal(t, 1, r.Skipped)
	assert.Equal(t, 0, r.Failure)
	assert.Equal(t, 2, r.Attempted)
	assert.NotEmpty(t, r.FlowID)
}

func TestRunStateCloseReportsWithoutError(t *testing.T) {
	r := NewRunState(time.Now(), "")
	finish, _ := r.Run("build")
	finish(StepSuccess, nil)

	ui := cli.NewMockUi()
	assert.NoError(t, r.Close(ui))
	assert.Contains(t, ui.OutputWriter.String(), "1 successful")
}
