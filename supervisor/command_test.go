package supervisor_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Maestro-111/search-engine/config"
	"github.com/Maestro-111/search-engine/entity"
	"github.com/Maestro-111/search-engine/supervisor"
)

func TestCrawlCommandFromParams(t *testing.T) {
	t.Parallel()

	var cfg config.EnvConfig
	cfg.Job.CrawlCommand = []string{"python", "crawling/crawl.py"}
	cfg.Job.CrawlWorkDir = "/srv/crawling"
	cfg.Job.Timeout = time.Hour
	cfg.Job.WaitDelay = 5 * time.Second

	cmd, err := supervisor.CrawlCommand(&cfg, entity.CrawlParams{
		StartingURL:       "https://en.wikipedia.org/wiki/Go; rm -rf /",
		CrawlDepth:        2,
		MaxPages:          50,
		MongoDB:           "crawler",
		MongoDBCollection: "--drop-collection",
		SpiderName:        "wikipedia_spider",
	})
	require.NoError(t, err)
	require.Equal(t, "python", cmd.Path)
	require.Equal(t, "/srv/crawling", cmd.Dir)
	require.Equal(t, time.Hour, cmd.Timeout)
	require.Equal(t, []string{
		"crawling/crawl.py",
		"--seed-url=https://en.wikipedia.org/wiki/Go; rm -rf /",
		"--depth-limit=2",
		"--page-limit=50",
		"--mongo-db=crawler",
		"--mongo-collection=--drop-collection",
		"--spider-name=wikipedia_spider",
	}, cmd.Args)
}

func TestIndexCommandFromParams(t *testing.T) {
	t.Parallel()

	var cfg config.EnvConfig
	cfg.Job.IndexCommand = []string{"/usr/local/bin/indexer"}

	cmd, err := supervisor.IndexCommand(&cfg, entity.IndexParams{
		MongoDB:         "crawler",
		MongoCollection: "pages",
		ElasticIndex:    "wiki",
		BatchSize:       100,
	})
	require.NoError(t, err)
	require.Equal(t, "/usr/local/bin/indexer", cmd.Path)
	require.Equal(t, []string{
		"--mongo-db=crawler",
		"--mongo-collection=pages",
		"--elastic-index=wiki",
		"--batch-size=100",
	}, cmd.Args)

	cfg.Job.IndexCommand = nil
	_, err = supervisor.IndexCommand(&cfg, entity.IndexParams{})
	require.Error(t, err)
}
