package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"relayengine/internal/db"
	"relayengine/internal/engine"
	"relayengine/internal/models"
	"relayengine/internal/web/middleware"
	webModels "relayengine/internal/web/models"
)

// RuleStore is the configuration store behind the rule CRUD routes
type RuleStore interface {
	GetRulesByOwner(ctx context.Context, ownerID string) ([]models.Rule, error)
	GetRuleByID(ctx context.Context, id string) (*models.Rule, error)
	InsertRule(ctx context.Context, r models.Rule) error
	UpdateRule(ctx context.Context, r models.Rule) error
	DeleteRule(ctx context.Context, id string) error
	GetActionLog(ctx context.Context, ruleID string, limit int) ([]models.ActionLogEntry, error)
}

// EngineInterface defines the methods needed from the engine
type EngineInterface interface {
	ReloadRules(ctx context.Context) error
	EvaluateSchedules(ctx context.Context)
	Status() engine.Status
}

func RegisterAutomationRoutes(r *gin.Engine, middleware *middleware.MiddlewareManager, store RuleStore, eng EngineInterface) {
	automations := r.Group("/automations")
	automations.Use(middleware.RequireAuth())
	{
		automations.GET("/rules", func(c *gin.Context) {
			rules, err := store.GetRulesByOwner(c.Request.Context(), c.GetString("user_id"))
			if err != nil {
				log.Printf("API: Failed to fetch rules: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch rules"})
				return
			}
			c.JSON(http.StatusOK, rules)
		})

		automations.GET("/rules/:id", func(c *gin.Context) {
			rule, ok := ownedRule(c, store)
			if !ok {
				return
			}
			c.JSON(http.StatusOK, rule)
		})

		automations.POST("/rules", func(c *gin.Context) {
			var rule models.Rule
			if err := c.ShouldBindJSON(&rule); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
				return
			}
			if rule.ID == "" {
				rule.ID = uuid.NewString()
			}
			rule.OwnerID = c.GetString("user_id")
			rule.Normalize()
			if err := rule.Validate(); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if err := store.InsertRule(c.Request.Context(), rule); err != nil {
				log.Printf("API: Failed to create rule: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create rule"})
				return
			}
			reload(c, eng)
			c.JSON(http.StatusCreated, rule)
		})

		automations.PUT("/rules/:id", func(c *gin.Context) {
			existing, ok := ownedRule(c, store)
			if !ok {
				return
			}
			var rule models.Rule
			if err := c.ShouldBindJSON(&rule); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
				return
			}
			rule.ID = existing.ID
			rule.OwnerID = existing.OwnerID
			saveRule(c, store, eng, rule)
		})

		automations.PATCH("/rules/:id", func(c *gin.Context) {
			existing, ok := ownedRule(c, store)
			if !ok {
				return
			}
			var req webModels.UpdateRuleRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
				return
			}
			req.Apply(existing)
			saveRule(c, store, eng, *existing)
		})

		automations.DELETE("/rules/:id", func(c *gin.Context) {
			rule, ok := ownedRule(c, store)
			if !ok {
				return
			}
			if err := store.DeleteRule(c.Request.Context(), rule.ID); err != nil {
				log.Printf("API: Failed to delete rule %s: %v", rule.ID, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete rule"})
				return
			}
			reload(c, eng)
			c.JSON(http.StatusOK, gin.H{"status": "Rule deleted successfully"})
		})

		automations.GET("/rules/:id/log", func(c *gin.Context) {
			rule, ok := ownedRule(c, store)
			if !ok {
				return
			}
			limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
			if err != nil || limit <= 0 || limit > 500 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
				return
			}
			entries, err := store.GetActionLog(c.Request.Context(), rule.ID, limit)
			if err != nil {
				log.Printf("API: Failed to fetch action log for rule %s: %v", rule.ID, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch action log"})
				return
			}
			c.JSON(http.StatusOK, entries)
		})

		automations.POST("/schedules/evaluate", func(c *gin.Context) {
			eng.EvaluateSchedules(c.Request.Context())
			c.JSON(http.StatusAccepted, gin.H{"status": "Schedules evaluated"})
		})

		automations.GET("/engine/status", func(c *gin.Context) {
			c.JSON(http.StatusOK, eng.Status())
		})
	}
}

// ownedRule loads the :id rule and answers 404 unless it belongs to the caller
func ownedRule(c *gin.Context, store RuleStore) (*models.Rule, bool) {
	rule, err := store.GetRuleByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			log.Printf("API: Failed to fetch rule %s: %v", c.Param("id"), err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch rule"})
			return nil, false
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
		return nil, false
	}
	if rule.OwnerID != c.GetString("user_id") {
		c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
		return nil, false
	}
	return rule, true
}

func saveRule(c *gin.Context, store RuleStore, eng EngineInterface, rule models.Rule) {
	rule.Normalize()
	if err := rule.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := store.UpdateRule(c.Request.Context(), rule); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
			return
		}
		log.Printf("API: Failed to update rule %s: %v", rule.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update rule"})
		return
	}
	reload(c, eng)
	c.JSON(http.StatusOK, rule)
}

// reload refreshes the engine after a mutation. The store is authoritative, so a failed
// reload is logged and the request still succeeds.
func reload(c *gin.Context, eng EngineInterface) {
	if err := eng.ReloadRules(c.Request.Context()); err != nil {
		log.Printf("API: Rule saved but engine reload failed: %v", err)
	}
}
