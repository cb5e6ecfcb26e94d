package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"propertypro/server/config"
)

// Dependencies groups everything the router serves.
type Dependencies struct {
	Engine       Recommender
	Interactions InteractionSink
	Preferences  PreferenceStore
	RegionGroups *config.RegionGroups
	Logger       *logrus.Logger
}

func SetupRoutes(router *gin.Engine, deps Dependencies) {
	handler := NewHandler(deps.Engine, deps.Logger)
	users := NewUserHandler(deps.Interactions, deps.Preferences, deps.Logger)
	regions := NewRegionGroupHandler(deps.RegionGroups)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		api.GET("/recommendations", handler.GetRecommendations)
		api.POST("/recommendations/ml/retrain", handler.Retrain)
		api.GET("/recommendations/ml/stats", handler.ModelStats)

		api.GET("/properties/investment", handler.InvestmentProperties)
		api.GET("/properties/investment/geojson", handler.InvestmentMap)
		api.GET("/properties/:id/similar", handler.GetSimilar)
		api.GET("/properties/:id/prediction", handler.PredictInterest)
		api.GET("/properties/:id/match", handler.MatchScore)

		api.GET("/trends/prices", handler.PriceTrends)

		api.POST("/interactions", users.LogInteractions)
		api.GET("/users/:id/preferences", users.GetPreferences)
		api.PUT("/users/:id/preferences", users.PutPreferences)

		api.GET("/region-groups", regions.ListRegionGroups)
		api.GET("/region-groups/:name", regions.GetRegionGroup)
		api.PUT("/region-groups/:name", regions.PutRegionGroup)
		api.DELETE("/region-groups/:name", regions.DeleteRegionGroup)
	}
}
