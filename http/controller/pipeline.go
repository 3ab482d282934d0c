package controller

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Maestro-111/search-engine/http/controller/dto"
	"github.com/Maestro-111/search-engine/repository"
	"github.com/Maestro-111/search-engine/service"
	"github.com/Maestro-111/search-engine/utils"
)

func (ctrl *Controller) CreatePipeline(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreatePipelineRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[Pipeline] Failed to bind JSON: %v", err)
		utils.JSON400(c, "Invalid request payload")
		return
	}

	job, err := ctrl.PipelineService.Create(ctx, req.Crawl, req.Index)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			utils.JSON400(c, verr.Error())
			return
		}
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Pipeline] Failed to create pipeline: %v", err)
		utils.JSON500(c, "Failed to create pipeline")
		return
	}

	utils.JSON202(c, gin.H{
		"pipeline_id": job.ID,
		"status":      job.Status,
	})
}

func (ctrl *Controller) GetPipeline(c *gin.Context) {
	ctx := c.Request.Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.JSON400(c, "Invalid pipeline id format")
		return
	}

	pipeline, err := ctrl.PipelineService.Get(ctx, id)
	if errors.Is(err, repository.ErrTrackedJobNotFound) {
		utils.JSON404(c, "Pipeline not found")
		return
	}
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Pipeline] Failed to read pipeline %s: %v", id, err)
		utils.JSON500(c, "Failed to read pipeline")
		return
	}

	utils.JSON200(c, pipeline)
}
