package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/Maestro-111/search-engine/http/controller"
	middlewares "github.com/Maestro-111/search-engine/http/middleware"
)

func SetupRouter(ctrl *controller.Controller) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	middles, err := middlewares.NewMiddlewares(ctrl)
	if err != nil {
		panic(err)
	}
	r.Use(middles.CORSMiddleware, middles.RequestMiddleware)

	r.GET("/health", ctrl.Health)
	r.GET("/ready", ctrl.Ready)

	r.POST("/crawl", ctrl.SubmitCrawl)
	r.POST("/index", ctrl.SubmitIndex)
	r.GET("/status/:job_id", ctrl.GetJobStatus)

	jobRoutes := r.Group("/jobs")
	{
		jobRoutes.GET("", ctrl.ListJobs)
		jobRoutes.GET("/:job_id", ctrl.GetJob)
		jobRoutes.DELETE("/:job_id", ctrl.DeleteJob)
		jobRoutes.POST("/:job_id/cancel", ctrl.CancelJob)
	}

	pipelineRoutes := r.Group("/pipelines")
	{
		pipelineRoutes.POST("", ctrl.CreatePipeline)
		pipelineRoutes.GET("/:id", ctrl.GetPipeline)
	}

	return r
}
