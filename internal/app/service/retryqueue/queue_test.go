package retryqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNextBackoffDoublesAndCaps(t *testing.T) {
	require.Equal(t, 30*time.Second, nextBackoff(0))
	require.Equal(t, time.Minute, nextBackoff(1))
	require.Equal(t, 2*time.Minute, nextBackoff(2))
	require.Equal(t, 4*time.Minute, nextBackoff(3))
	require.Equal(t, 8*time.Minute, nextBackoff(4))
	require.Equal(t, 8*time.Minute, nextBackoff(10))
}
