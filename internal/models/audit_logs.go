package models

import (
	"time"
)

// JSONB represents PostgreSQL JSONB type
type JSONB map[string]interface{}

// AuditLog represents an audit log entry for tracking provider changes
type AuditLog struct {
	ID         int64     `json:"id" db:"id"`
	ProviderID int64     `json:"provider_id" db:"provider_id"`
	Action     string    `json:"action" db:"action"`
	OldValues  JSONB     `json:"old_values" db:"old_values"`
	NewValues  JSONB     `json:"new_values" db:"new_values"`
	ChangedBy  *int64    `json:"changed_by" db:"changed_by"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Action constants for audit logs
const (
	ActionInsert = "INSERT"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)
