//go:build linux

package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPinThread(t *testing.T) {
	cpus, err := AllowedCPUs()
	require.NoError(t, err)
	require.NotEmpty(t, cpus)

	pinned, err := PinThread(cpus[0])
	require.NoError(t, err)
	defer pinned()

	only, err := AllowedCPUs()
	require.NoError(t, err)
	assert.Equal(t, cpus[:1], only)

	// Restore the original affinity before the thread is released.
	restored, err := PinThread(cpus...)
	require.NoError(t, err)
	defer restored()

	after, err := AllowedCPUs()
	require.NoError(t, err)
	assert.Equal(t, cpus, after)

	_, err = PinThread()
	assert.ErrorIs(t, err, errNoCPU)
}
