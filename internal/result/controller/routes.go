// Package controller holds the HTTP handlers of the result service.
package controller

import (
	"judgeresult/internal/result/viewer"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the result and queue endpoints under /api/v1.
// Creating results and every queue endpoint require a privileged viewer.
func RegisterRoutes(router gin.IRouter, results *ResultController, q *QueueController, resolver *viewer.Resolver) {
	api := router.Group("/api/v1")
	api.Use(viewer.Middleware(resolver))

	resultsAPI := api.Group("/results")
	resultsAPI.GET("", results.List)
	resultsAPI.GET("/count", results.Count)
	resultsAPI.GET("/solved", results.Solved)
	resultsAPI.GET("/:id", results.Get)
	resultsAPI.POST("", viewer.RequirePrivileged(), results.Create)

	queueAPI := api.Group("/queue", viewer.RequirePrivileged())
	queueAPI.POST("/claim", q.Claim)
	queueAPI.POST("/claims/:token/renew", q.Renew)
	queueAPI.POST("/claims/:token/complete", q.Complete)
}
