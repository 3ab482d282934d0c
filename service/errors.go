package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrJobRunning    = errors.New("job is still running")
	ErrJobNotRunning = errors.New("job is not running on this instance")
)

// ValidationError is returned for a malformed submission. Fields maps the
// offending request field to a short reason.
type ValidationError struct {
	Fields map[string]string
	Err    error
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("invalid job parameters: %v", e.Err)
	}
	parts := make([]string, 0, len(e.Fields))
	for field, reason := range e.Fields {
		parts = append(parts, field+" "+reason)
	}
	return "invalid job parameters: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func newValidationError(err error) *ValidationError {
	verr := &ValidationError{Err: err}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		verr.Fields = make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			verr.Fields[jsonFieldNames[fe.Field()]] = describe(fe)
		}
	}
	return verr
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "lowercase":
		return "must be lowercase"
	case "excludesall":
		return "contains a forbidden character"
	default:
		return "is invalid (" + fe.Tag() + ")"
	}
}

var jsonFieldNames = map[string]string{
	"StartingURL":       "starting_url",
	"CrawlDepth":        "crawl_depth",
	"MaxPages":          "max_pages",
	"MongoDB":           "mongo_db",
	"MongoDBCollection": "mongodb_collection",
	"SpiderName":        "spider_name",
	"MongoCollection":   "mongo_collection",
	"ElasticIndex":      "elastic_index",
	"BatchSize":         "batch_size",
}
