package dto

// CreatePipelineRequestDTO carries a crawl and an optional index job that
// runs once the crawl has completed.
type CreatePipelineRequestDTO struct {
	Crawl map[string]any `json:"crawl" binding:"required"`
	Index map[string]any `json:"index"`
}

type ListJobsQueryDTO struct {
	Limit int `form:"limit" binding:"omitempty,gte=1,lte=1000"`
}
