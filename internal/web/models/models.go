package models

import (
	domain "relayengine/internal/models"
)

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Email    string `json:"email"`
}

// UpdateRuleRequest carries the fields of a partial rule update
type UpdateRuleRequest struct {
	Name          *string                `json:"name"`
	Enabled       *bool                  `json:"enabled"`
	TriggerGroups *[]domain.TriggerGroup `json:"trigger_groups"`
	Actions       *[]domain.Action       `json:"actions"`
}

// Apply copies the provided fields onto r
func (u UpdateRuleRequest) Apply(r *domain.Rule) {
	if u.Name != nil {
		r.Name = *u.Name
	}
	if u.Enabled != nil {
		r.Enabled = *u.Enabled
	}
	if u.TriggerGroups != nil {
		r.TriggerGroups = *u.TriggerGroups
	}
	if u.Actions != nil {
		r.Actions = *u.Actions
	}
}
