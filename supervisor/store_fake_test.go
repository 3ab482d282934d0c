package supervisor

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Maestro-111/search-engine/entity"
	"github.com/Maestro-111/search-engine/repository"
)

// memStore records every write it receives.
type memStore struct {
	mu       sync.Mutex
	puts     []entity.JobRecord
	failures int
}

func (s *memStore) Put(_ context.Context, record *entity.JobRecord, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return &repository.StoreError{Op: "put", Err: errors.New("connection refused")}
	}
	s.puts = append(s.puts, *record)
	return nil
}

func (s *memStore) writes() []entity.JobRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.JobRecord, len(s.puts))
	copy(out, s.puts)
	return out
}

func (s *memStore) last() entity.JobRecord {
	w := s.writes()
	if len(w) == 0 {
		return entity.JobRecord{}
	}
	return w[len(w)-1]
}

type memArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (a *memArchive) Upload(_ context.Context, key string, body []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.objects == nil {
		a.objects = make(map[string][]byte)
	}
	a.objects[key] = body
	return nil
}

func (a *memArchive) get(key string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return string(a.objects[key])
}

func writeTestScript(t *testing.T, body string) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skipf("skipped, sh not available: %v", err)
	}
	path := filepath.Join(t.TempDir(), "job.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func queuedRecord(id string) entity.JobRecord {
	return entity.JobRecord{
		ID:        id,
		Kind:      entity.JobKindCrawl,
		Status:    entity.JobStatusQueued,
		CreatedAt: time.Now().UTC(),
	}
}
