package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func JSON200(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

func JSON202(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, data)
}

func JSON400(c *gin.Context, message string) {
	jsonError(c, http.StatusBadRequest, message)
}

func JSON404(c *gin.Context, message string) {
	jsonError(c, http.StatusNotFound, message)
}

func JSON409(c *gin.Context, message string) {
	jsonError(c, http.StatusConflict, message)
}

func JSON500(c *gin.Context, message string) {
	jsonError(c, http.StatusInternalServerError, message)
}

func JSON503(c *gin.Context, message string) {
	jsonError(c, http.StatusServiceUnavailable, message)
}

func jsonError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
