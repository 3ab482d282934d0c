package service

import (
	"encoding/json"
	"fmt"

	"github.com/gin-gonic/gin/binding"

	"github.com/Maestro-111/search-engine/entity"
)

func parseCrawlParams(params map[string]any) (entity.CrawlParams, error) {
	var p entity.CrawlParams
	if err := decodeParams(params, &p); err != nil {
		return p, err
	}
	p.ApplyDefaults()
	if err := binding.Validator.ValidateStruct(&p); err != nil {
		return p, newValidationError(err)
	}
	return p, nil
}

func parseIndexParams(params map[string]any) (entity.IndexParams, error) {
	var p entity.IndexParams
	if err := decodeParams(params, &p); err != nil {
		return p, err
	}
	p.ApplyDefaults()
	if err := binding.Validator.ValidateStruct(&p); err != nil {
		return p, newValidationError(err)
	}
	return p, nil
}

// ValidateParams checks params against the schema of kind and returns them
// with defaults applied.
func ValidateParams(kind entity.JobKind, params map[string]any) (map[string]any, error) {
	switch kind {
	case entity.JobKindCrawl:
		p, err := parseCrawlParams(params)
		if err != nil {
			return nil, err
		}
		return toMap(p), nil
	case entity.JobKindIndex:
		p, err := parseIndexParams(params)
		if err != nil {
			return nil, err
		}
		return toMap(p), nil
	default:
		return nil, &ValidationError{Err: fmt.Errorf("unknown job kind %q", kind)}
	}
}

func decodeParams(params map[string]any, out any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return &ValidationError{Err: err}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

func toMap(v any) map[string]any {
	raw, _ := json.Marshal(v)
	out := make(map[string]any)
	_ = json.Unmarshal(raw, &out)
	return out
}
