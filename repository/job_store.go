package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Maestro-111/search-engine/entity"
)

const jobKeyPrefix = "job:"

var ErrJobNotFound = errors.New("job not found")

// StoreError wraps any failure talking to the job store backend.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("job store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// JobStore keeps one JSON document per job under job:{id}. Every write
// replaces the whole record and resets its TTL.
type JobStore struct {
	client redis.UniversalClient
}

func NewJobStore(client redis.UniversalClient) *JobStore {
	return &JobStore{client: client}
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}

func (s *JobStore) Put(ctx context.Context, record *entity.JobRecord, ttl time.Duration) error {
	if record == nil || record.ID == "" {
		return errors.New("job record must have an id")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal job record %s: %w", record.ID, err)
	}

	if err := s.client.Set(ctx, jobKey(record.ID), data, ttl).Err(); err != nil {
		return &StoreError{Op: "put", Err: err}
	}
	return nil
}

func (s *JobStore) Get(ctx context.Context, id string) (*entity.JobRecord, error) {
	data, err := s.client.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, &StoreError{Op: "get", Err: err}
	}

	var record entity.JobRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode job record %s: %w", id, err)
	}
	return &record, nil
}

func (s *JobStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, jobKey(id)).Result()
	if err != nil {
		return &StoreError{Op: "delete", Err: err}
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// List returns up to limit records, newest first. Records that expire
// between the scan and the read are skipped.
func (s *JobStore) List(ctx context.Context, limit int) ([]entity.JobRecord, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, jobKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, &StoreError{Op: "scan", Err: err}
	}
	if len(keys) == 0 {
		return []entity.JobRecord{}, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, &StoreError{Op: "mget", Err: err}
	}

	records := make([]entity.JobRecord, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var record entity.JobRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("failed to decode job record %s: %w", keys[i], err)
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}
