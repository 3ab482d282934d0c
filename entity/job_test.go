package entity_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Maestro-111/search-engine/entity"
)

func TestJobStatusTransitions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from, to entity.JobStatus
		allowed  bool
	}{
		{entity.JobStatusQueued, entity.JobStatusRunning, true},
		{entity.JobStatusQueued, entity.JobStatusFailed, true},
		{entity.JobStatusQueued, entity.JobStatusCompleted, false},
		{entity.JobStatusRunning, entity.JobStatusCompleted, true},
		{entity.JobStatusRunning, entity.JobStatusFailed, true},
		{entity.JobStatusRunning, entity.JobStatusQueued, false},
		{entity.JobStatusCompleted, entity.JobStatusFailed, false},
		{entity.JobStatusFailed, entity.JobStatusCompleted, false},
		{entity.JobStatusFailed, entity.JobStatusRunning, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			require.Equal(t, tc.allowed, tc.from.CanTransition(tc.to))
		})
	}
}

func TestParamsDefaults(t *testing.T) {
	t.Parallel()

	crawl := entity.CrawlParams{StartingURL: "https://en.wikipedia.org/wiki/Go", MaxPages: 20}
	crawl.ApplyDefaults()
	require.Equal(t, 1, crawl.CrawlDepth)
	require.Equal(t, 20, crawl.MaxPages)
	require.Equal(t, "wikipedia_spider", crawl.SpiderName)

	index := entity.IndexParams{}
	index.ApplyDefaults()
	require.Equal(t, 100, index.BatchSize)
}
