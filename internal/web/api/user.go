package api

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"relayengine/internal/models"
	"relayengine/internal/web/middleware"
)

// OperatorReader loads operator profiles
type OperatorReader interface {
	GetOperator(ctx context.Context, id int) (*models.Operator, error)
}

func RegisterUserRoutes(r *gin.Engine, middleware *middleware.MiddlewareManager, operators OperatorReader) {
	users := r.Group("/users")
	users.Use(middleware.RequireAuth())
	{
		users.GET("/me", func(c *gin.Context) {
			id, err := strconv.Atoi(c.GetString("user_id"))
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
				return
			}
			op, err := operators.GetOperator(c.Request.Context(), id)
			if err != nil {
				log.Printf("API: Failed to fetch user data: %v", err)
				c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
				return
			}
			c.JSON(http.StatusOK, op)
		})
	}
}
