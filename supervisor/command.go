package supervisor

import (
	"errors"
	"strconv"
	"time"

	"github.com/Maestro-111/search-engine/config"
	"github.com/Maestro-111/search-engine/entity"
)

// Command describes one process invocation. Args are passed to the
// executable verbatim; no shell is involved.
type Command struct {
	Path      string
	Args      []string
	Dir       string
	Env       []string
	Timeout   time.Duration
	WaitDelay time.Duration
}

func newCommand(base []string, dir string, cfg *config.EnvConfig, flags ...string) (Command, error) {
	if len(base) == 0 {
		return Command{}, errors.New("job command is not configured")
	}
	args := make([]string, 0, len(base)-1+len(flags))
	args = append(args, base[1:]...)
	args = append(args, flags...)
	return Command{
		Path:      base[0],
		Args:      args,
		Dir:       dir,
		Timeout:   cfg.Job.Timeout,
		WaitDelay: cfg.Job.WaitDelay,
	}, nil
}

// flag joins name and value into one argument so a value that starts with
// a dash is never read as an option.
func flag(name, value string) string {
	return "--" + name + "=" + value
}

// CrawlCommand builds the crawler invocation from validated parameters.
func CrawlCommand(cfg *config.EnvConfig, p entity.CrawlParams) (Command, error) {
	return newCommand(cfg.Job.CrawlCommand, cfg.Job.CrawlWorkDir, cfg,
		flag("seed-url", p.StartingURL),
		flag("depth-limit", strconv.Itoa(p.CrawlDepth)),
		flag("page-limit", strconv.Itoa(p.MaxPages)),
		flag("mongo-db", p.MongoDB),
		flag("mongo-collection", p.MongoDBCollection),
		flag("spider-name", p.SpiderName),
	)
}

// IndexCommand builds the indexer invocation from validated parameters.
func IndexCommand(cfg *config.EnvConfig, p entity.IndexParams) (Command, error) {
	return newCommand(cfg.Job.IndexCommand, cfg.Job.IndexWorkDir, cfg,
		flag("mongo-db", p.MongoDB),
		flag("mongo-collection", p.MongoCollection),
		flag("elastic-index", p.ElasticIndex),
		flag("batch-size", strconv.Itoa(p.BatchSize)),
	)
}
