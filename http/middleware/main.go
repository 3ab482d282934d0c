package middlewares

import (
	"github.com/gin-gonic/gin"

	"github.com/Maestro-111/search-engine/http/controller"
)

type Middlewares struct {
	CORSMiddleware    gin.HandlerFunc
	RequestMiddleware gin.HandlerFunc
}

func NewMiddlewares(ctrl *controller.Controller) (*Middlewares, error) {
	cors := CORSMiddleware(ctrl.Config.EnvConfig)
	request := RequestMiddleware(ctrl.Infra.Logger)

	return &Middlewares{
		CORSMiddleware:    cors,
		RequestMiddleware: request,
	}, nil
}
