package controller

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Maestro-111/search-engine/utils"
)

func (ctrl *Controller) Health(c *gin.Context) {
	utils.JSON200(c, gin.H{"status": "healthy"})
}

// Ready reports whether the job store is reachable.
func (ctrl *Controller) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := ctrl.Infra.Redis.Ping(ctx); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Health] Job store unreachable: %v", err)
		utils.JSON503(c, "Job store unreachable")
		return
	}
	utils.JSON200(c, gin.H{"status": "ready"})
}
