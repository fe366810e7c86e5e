package sh

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTelemetryCell(t *testing.T) {
	var cell telemetryCell
	_, _, ok := cell.get()
	assert.False(t, ok)

	cell.set(120, true)
	rpm, obstacle, ok := cell.get()
	assert.True(t, ok)
	assert.Equal(t, 120, rpm)
	assert.True(t, obstacle)

	cell.set(0, false)
	rpm, obstacle, ok = cell.get()
	assert.True(t, ok)
	assert.Zero(t, rpm)
	assert.False(t, obstacle)
}
