package produce

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDelayQueueFor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		delay time.Duration
		queue string
		ttl   time.Duration
	}{
		{10 * time.Second, "job.chain.poll.delay.10s", 10 * time.Second},
		{27*time.Second + 400*time.Millisecond, "job.chain.poll.delay.27s", 27 * time.Second},
		{35*time.Second + 600*time.Millisecond, "job.chain.poll.delay.36s", 36 * time.Second},
		{200 * time.Millisecond, "job.chain.poll.delay.1s", time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.delay.String(), func(t *testing.T) {
			queue, ttl := delayQueueFor(tc.delay)
			require.Equal(t, tc.queue, queue)
			require.Equal(t, tc.ttl, ttl)
		})
	}
}

func TestDelayClassesUseSeparateQueues(t *testing.T) {
	t.Parallel()

	first, _ := delayQueueFor(10 * time.Second)
	retry, _ := delayQueueFor(30 * time.Second)
	require.NotEqual(t, first, retry)
}
