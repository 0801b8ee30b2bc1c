package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes registers every API route on router.
func SetupRoutes(router *gin.Engine, deps Deps) {
	h := &handler{deps: deps, logger: deps.Logger.With("component", "api_handler")}

	v1 := router.Group("/api/v1")
	v1.GET("/health", h.health)

	if deps.Webhook != nil {
		// The bot library checks the secret token header itself.
		v1.POST("/telegram/webhook", gin.WrapF(deps.Webhook))
	}

	admin := v1.Group("", BearerAuth(deps.Config.Token))

	ads := admin.Group("/advertisements")
	{
		ads.GET("", h.listAdvertisements)
		ads.POST("", h.createAdvertisement)
		ads.GET("/:id", h.getAdvertisement)
		ads.PUT("/:id", h.updateAdvertisement)
		ads.DELETE("/:id", h.deleteAdvertisement)
		ads.POST("/:id/status", h.setAdvertisementStatus)
		ads.GET("/:id/deliveries", h.listDeliveries)
	}

	stores := admin.Group("/stores")
	{
		stores.GET("", h.listStores)
		stores.POST("", h.createStore)
		stores.GET("/:id", h.getStore)
		stores.PUT("/:id", h.updateStore)
		stores.DELETE("/:id", h.deleteStore)
	}

	buttons := admin.Group("/menu-buttons")
	{
		buttons.GET("", h.listMenuButtons)
		buttons.GET("/tree", h.menuTree)
		buttons.POST("", h.createMenuButton)
		buttons.GET("/:id", h.getMenuButton)
		buttons.PUT("/:id", h.updateMenuButton)
		buttons.DELETE("/:id", h.deleteMenuButton)
	}

	pins := admin.Group("/pin-messages")
	{
		pins.GET("", h.listPinMessages)
		pins.POST("", h.createPinMessage)
		pins.GET("/:id", h.getPinMessage)
		pins.PUT("/:id", h.updatePinMessage)
		pins.DELETE("/:id", h.deletePinMessage)
		pins.POST("/:id/broadcast", h.broadcastPinMessage)
	}

	admin.GET("/chats", h.listChats)
	admin.GET("/jobs", h.listJobs)
	admin.GET("/jobs/failed", h.listFailedJobs)
}
