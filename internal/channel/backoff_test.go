package channel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoffDoublesUntilCap(t *testing.T) {
	policy := BackoffPolicy{Base: time.Second, Max: 30 * time.Second}

	require.Equal(t, 1*time.Second, policy.Delay(0))
	require.Equal(t, 2*time.Second, policy.Delay(1))
	require.Equal(t, 4*time.Second, policy.Delay(2))
	require.Equal(t, 16*time.Second, policy.Delay(4))
	require.Equal(t, 30*time.Second, policy.Delay(5))
	require.Equal(t, 30*time.Second, policy.Delay(20))
}

func TestBackoffJitterStaysWithinBounds(t *testing.T) {
	policy := BackoffPolicy{Base: time.Second, Max: 30 * time.Second, Jitter: 0.2}

	lo := time.Duration(float64(4*time.Second) * 0.8)
	hi := time.Duration(float64(4*time.Second) * 1.2)
	for i := 0; i < 200; i++ {
		delay := policy.Delay(2)
		require.GreaterOrEqual(t, delay, lo)
		require.LessOrEqual(t, delay, hi)
	}
}

func TestBackoffNegativeAttemptTreatedAsFirst(t *testing.T) {
	policy := BackoffPolicy{Base: time.Second, Max: 30 * time.Second}
	require.Equal(t, time.Second, policy.Delay(-3))
}

func TestBackoffZeroPolicyUsesDefaults(t *testing.T) {
	var policy BackoffPolicy

	require.Equal(t, DefaultBackoffBase, policy.Delay(0))
	require.Equal(t, DefaultBackoffMax, policy.Delay(40))
}

func TestBackoffHugeAttemptDoesNotOverflow(t *testing.T) {
	policy := BackoffPolicy{Base: time.Second, Max: 30 * time.Second}

	delay := policy.Delay(1 << 20)
	require.Equal(t, 30*time.Second, delay)
}
