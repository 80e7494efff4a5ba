package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/version", s.handleVersion)

	// Push streams
	s.echo.GET("/ws/console", s.handleConsoleSocket)
	s.echo.GET("/ws/display/:name", s.handleDisplaySocket)

	// Displays
	s.echo.GET("/api/displays", s.handleListDisplays)
	s.echo.POST("/api/displays/:name/heartbeat", s.handleHeartbeat)
	s.echo.PUT("/api/displays/:name", s.handleUpdateDisplaySettings)
	s.echo.PUT("/api/displays/:name/slideshow", s.handleAssignSlideshow)

	// Slideshows
	s.echo.GET("/api/slideshows", s.handleListSlideshows)
	s.echo.GET("/api/slideshows/:id", s.handleGetSlideshow)
	s.echo.PUT("/api/slideshows/:id", s.handleUpdateSlideshow)
	s.echo.DELETE("/api/slideshows/:id", s.handleDeleteSlideshow)

	// External feeds
	s.echo.GET("/api/feeds/events", s.handleFeedEvents)
	s.echo.POST("/api/feeds/refresh", s.handleRefreshFeeds)

	// Diagnostics
	s.echo.POST("/api/system/test", s.handleSystemTest)
	s.echo.GET("/api/stats", s.handleStats)
}
