package controller

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/Maestro-111/search-engine/entity"
	"github.com/Maestro-111/search-engine/http/controller/dto"
	"github.com/Maestro-111/search-engine/infra"
	"github.com/Maestro-111/search-engine/repository"
	"github.com/Maestro-111/search-engine/service"
	"github.com/Maestro-111/search-engine/utils"
)

const defaultListLimit = 100

func (ctrl *Controller) SubmitCrawl(c *gin.Context) {
	ctrl.submit(c, entity.JobKindCrawl)
}

func (ctrl *Controller) SubmitIndex(c *gin.Context) {
	ctrl.submit(c, entity.JobKindIndex)
}

func (ctrl *Controller) submit(c *gin.Context, kind entity.JobKind) {
	ctx := c.Request.Context()

	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[Job] Failed to bind %s request: %v", kind, err)
		utils.JSON400(c, "Invalid request body: "+err.Error())
		return
	}

	var parentJobID string
	if raw, ok := body["parent_job_id"]; ok {
		parentJobID, ok = raw.(string)
		if !ok {
			utils.JSON400(c, "parent_job_id must be a string")
			return
		}
		delete(body, "parent_job_id")
	}

	record, err := ctrl.JobService.Submit(ctx, kind, body, parentJobID)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			ctrl.Infra.Logger.WarningWithContextf(ctx, "[Job] Rejected %s request: %v", kind, verr)
			utils.JSON400(c, verr.Error())
			return
		}
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Job] Failed to submit %s job: %v", kind, err)
		utils.JSON500(c, "Failed to submit job")
		return
	}

	utils.JSON200(c, record.StatusResponse())
}

func (ctrl *Controller) GetJobStatus(c *gin.Context) {
	jobID := c.Param("job_id")
	ctx := infra.WithLogAttrs(c.Request.Context(), slog.String("job_id", jobID))

	status, err := ctrl.JobService.GetStatus(ctx, jobID)
	if errors.Is(err, repository.ErrJobNotFound) {
		utils.JSON404(c, "Job not found")
		return
	}
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Job] Failed to read status of job %s: %v", jobID, err)
		utils.JSON500(c, "Failed to read job status")
		return
	}

	utils.JSON200(c, status)
}

func (ctrl *Controller) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")
	ctx := infra.WithLogAttrs(c.Request.Context(), slog.String("job_id", jobID))

	record, err := ctrl.JobService.Get(ctx, jobID)
	if errors.Is(err, repository.ErrJobNotFound) {
		utils.JSON404(c, "Job not found")
		return
	}
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Job] Failed to read job %s: %v", jobID, err)
		utils.JSON500(c, "Failed to read job")
		return
	}

	utils.JSON200(c, record)
}

func (ctrl *Controller) ListJobs(c *gin.Context) {
	ctx := c.Request.Context()

	var query dto.ListJobsQueryDTO
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.JSON400(c, "Invalid limit")
		return
	}
	if query.Limit == 0 {
		query.Limit = defaultListLimit
	}

	records, err := ctrl.JobService.List(ctx, query.Limit)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Job] Failed to list jobs: %v", err)
		utils.JSON500(c, "Failed to list jobs")
		return
	}

	statuses := make([]entity.JobStatusResponse, 0, len(records))
	for i := range records {
		statuses = append(statuses, records[i].StatusResponse())
	}
	utils.JSON200(c, statuses)
}

func (ctrl *Controller) DeleteJob(c *gin.Context) {
	jobID := c.Param("job_id")
	ctx := infra.WithLogAttrs(c.Request.Context(), slog.String("job_id", jobID))

	err := ctrl.JobService.Delete(ctx, jobID)
	switch {
	case err == nil:
		utils.JSON200(c, gin.H{"message": "Job deleted successfully"})
	case errors.Is(err, repository.ErrJobNotFound):
		utils.JSON404(c, "Job not found")
	case errors.Is(err, service.ErrJobRunning):
		utils.JSON409(c, "Job is still running, cancel it first")
	default:
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Job] Failed to delete job %s: %v", jobID, err)
		utils.JSON500(c, "Failed to delete job")
	}
}

func (ctrl *Controller) CancelJob(c *gin.Context) {
	jobID := c.Param("job_id")
	ctx := infra.WithLogAttrs(c.Request.Context(), slog.String("job_id", jobID))

	err := ctrl.JobService.Cancel(ctx, jobID)
	switch {
	case err == nil:
		utils.JSON200(c, gin.H{"message": "Cancellation requested"})
	case errors.Is(err, repository.ErrJobNotFound):
		utils.JSON404(c, "Job not found")
	case errors.Is(err, service.ErrJobNotRunning):
		utils.JSON409(c, "Job is not running on this instance")
	default:
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Job] Failed to cancel job %s: %v", jobID, err)
		utils.JSON500(c, "Failed to cancel job")
	}
}
