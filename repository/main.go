package repository

import (
	"gorm.io/gorm"

	"github.com/Maestro-111/search-engine/infra"
)

type Repository struct {
	JobStore       *JobStore
	TrackedJobRepo *TrackedJobRepository
}

var repository *Repository

func InitRepository(infra *infra.Infra) *Repository {
	repository = &Repository{
		JobStore:       NewJobStore(infra.Redis.Client),
		TrackedJobRepo: NewTrackedJobRepository(infra.Postgres.DB),
	}
	return repository
}

func GetRepository() *Repository {
	if repository == nil {
		panic("repository not initialized")
	}
	return repository
}

func (r *Repository) WithTransaction(tx *gorm.DB) *Repository {
	return &Repository{
		JobStore:       r.JobStore,
		TrackedJobRepo: NewTrackedJobRepository(tx),
	}
}
