package api

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"relayengine/internal/db"
	"relayengine/internal/models"
	"relayengine/internal/redis"
	"relayengine/internal/web/middleware"
)

// DeviceStore lists the device inventory
type DeviceStore interface {
	GetDevices(ctx context.Context, ownerID string) ([]models.Device, error)
	GetDeviceByID(ctx context.Context, id string) (*models.Device, error)
}

// TelemetryReader returns mirrored telemetry
type TelemetryReader interface {
	GetTelemetry(ctx context.Context, topic string) (models.Document, error)
}

func RegisterDeviceRoutes(r *gin.Engine, middleware *middleware.MiddlewareManager, devices DeviceStore, telemetry TelemetryReader) {
	authed := r.Group("/")
	authed.Use(middleware.RequireAuth())
	{
		authed.GET("/devices", func(c *gin.Context) {
			list, err := devices.GetDevices(c.Request.Context(), c.GetString("user_id"))
			if err != nil {
				log.Printf("API: Failed to fetch devices: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch devices"})
				return
			}
			c.JSON(http.StatusOK, list)
		})

		authed.GET("/devices/:id", func(c *gin.Context) {
			device, err := devices.GetDeviceByID(c.Request.Context(), c.Param("id"))
			if err != nil {
				if !errors.Is(err, db.ErrNotFound) {
					log.Printf("API: Failed to fetch device %s: %v", c.Param("id"), err)
					c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch device"})
					return
				}
				c.JSON(http.StatusNotFound, gin.H{"error": "Device not found"})
				return
			}
			if device.OwnerID != nil && *device.OwnerID != c.GetString("user_id") {
				c.JSON(http.StatusNotFound, gin.H{"error": "Device not found"})
				return
			}
			c.JSON(http.StatusOK, device)
		})

		authed.GET("/telemetry", func(c *gin.Context) {
			topic := c.Query("topic")
			if topic == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "topic is required"})
				return
			}
			doc, err := telemetry.GetTelemetry(c.Request.Context(), topic)
			if errors.Is(err, redis.ErrNoTelemetry) {
				c.JSON(http.StatusNotFound, gin.H{"error": "No telemetry for topic"})
				return
			}
			if err != nil {
				log.Printf("API: Failed to read telemetry for %s: %v", topic, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read telemetry"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"topic": topic, "data": doc})
		})
	}
}
