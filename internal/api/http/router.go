package http

import "github.com/gin-gonic/gin"

func NewRouter(health *HealthController, runs *RunController, info *NetInfoController) *gin.Engine {
	router := gin.Default()

	router.GET("/health", health.Health)
	router.GET("/status", health.Status)
	router.GET("/ready", health.Ready)
	router.GET("/info", health.Info)

	router.POST("/runs/:key", runs.Start)
	router.GET("/runs/:key", runs.Get)
	router.DELETE("/runs/:key", runs.Stop)
	router.GET("/runs/:key/ws", runs.Stream)

	router.GET("/netinfo/interfaces", info.Interfaces)
	router.GET("/netinfo/public-ip", info.PublicIP)

	return router
}
