package controller

import (
	"github.com/Maestro-111/search-engine/config"
	"github.com/Maestro-111/search-engine/infra"
	"github.com/Maestro-111/search-engine/repository"
	"github.com/Maestro-111/search-engine/service"
	"github.com/Maestro-111/search-engine/supervisor"
)

type Controller struct {
	Config          *config.Config
	Infra           *infra.Infra
	Repository      *repository.Repository
	Supervisor      *supervisor.Supervisor
	JobService      *service.JobService
	PipelineService *service.PipelineService
}

func NewController(config *config.Config, infra *infra.Infra, repo *repository.Repository) *Controller {
	if repo == nil {
		panic("Failed to initialize Repository")
	}

	sup := supervisor.NewSupervisor(
		repo.JobStore,
		infra.Archive,
		infra.Logger,
		supervisor.OptionsFromConfig(config.EnvConfig),
	)

	return &Controller{
		Config:          config,
		Infra:           infra,
		Repository:      repo,
		Supervisor:      sup,
		JobService:      service.NewJobService(config.EnvConfig, repo.JobStore, sup, infra.Logger),
		PipelineService: service.NewPipelineService(repo.TrackedJobRepo, infra.Produce.ChainService, infra.Logger),
	}
}
