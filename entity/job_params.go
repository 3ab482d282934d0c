package entity

// CrawlParams are the validated parameters of a crawl job.
// Field names follow the crawler request contract.
type CrawlParams struct {
	StartingURL       string `json:"starting_url" binding:"required,url"`
	CrawlDepth        int    `json:"crawl_depth" binding:"gte=1,lte=10"`
	MaxPages          int    `json:"max_pages" binding:"gte=1,lte=10000"`
	MongoDB           string `json:"mongo_db" binding:"required,max=64,excludesall=/. $"`
	MongoDBCollection string `json:"mongodb_collection" binding:"required,max=120,excludesall=$"`
	SpiderName        string `json:"spider_name" binding:"oneof=wikipedia_spider reddit_spider bbc_spider"`
}

// ApplyDefaults fills optional fields left at their zero value
func (p *CrawlParams) ApplyDefaults() {
	if p.CrawlDepth == 0 {
		p.CrawlDepth = 1
	}
	if p.MaxPages == 0 {
		p.MaxPages = 5
	}
	if p.SpiderName == "" {
		p.SpiderName = "wikipedia_spider"
	}
}

// IndexParams are the validated parameters of an index job
type IndexParams struct {
	MongoDB         string `json:"mongo_db" binding:"required,max=64,excludesall=/. $"`
	MongoCollection string `json:"mongo_collection" binding:"required,max=120,excludesall=$"`
	ElasticIndex    string `json:"elastic_index" binding:"required,max=255,lowercase,excludesall=*?<> #"`
	BatchSize       int    `json:"batch_size" binding:"gte=1,lte=10000"`
}

func (p *IndexParams) ApplyDefaults() {
	if p.BatchSize == 0 {
		p.BatchSize = 100
	}
}
