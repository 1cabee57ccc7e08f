package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunStatusValid(t *testing.T) {
	t.Parallel()

	for _, s := range []RunStatus{RunRunning, RunSuccess, RunError} {
		require.True(t, s.Valid(), s)
	}
	require.False(t, RunStatus("").Valid())
	require.False(t, RunStatus("canceled").Valid())
}
