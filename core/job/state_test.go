package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	queued := State{Phase: PhaseQueued}
	downloading := State{Phase: PhaseDownloading}
	low := Encoding("low", 0)
	high := Encoding("high", 2)
	composing := State{Phase: PhaseComposing}
	done := State{Phase: PhaseDone}
	failed := State{Phase: PhaseFailed}

	assert.True(t, CanTransition(queued, downloading))
	assert.True(t, CanTransition(downloading, low))
	assert.True(t, CanTransition(low, high))
	assert.False(t, CanTransition(high, low))
	assert.True(t, CanTransition(high, composing))
	assert.True(t, CanTransition(queued, done))
	assert.True(t, CanTransition(composing, failed))
	assert.True(t, CanTransition(failed, queued))

	assert.False(t, CanTransition(downloading, queued))
	assert.False(t, CanTransition(composing, downloading))
	assert.False(t, CanTransition(failed, downloading))
	assert.False(t, CanTransition(done, failed))
	assert.False(t, CanTransition(queued, composing))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "encoding(premium)", Encoding("premium", 3).String())
	assert.Equal(t, "verifying", State{Phase: PhaseVerifying}.String())
	assert.True(t, State{Phase: PhaseFailed}.Terminal())
	assert.False(t, State{Phase: PhaseUploading}.Terminal())
}
