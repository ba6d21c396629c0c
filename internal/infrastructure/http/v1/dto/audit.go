package dto

import (
	"encoding/json"
	"time"

	"larder/internal/infrastructure/storage/postgres"
)

// AuditEntryResponse is one change-history entry.
type AuditEntryResponse struct {
	ID         string          `json:"id"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Action     string          `json:"action"`
	ActorID    string          `json:"actorId,omitempty"`
	Changes    json.RawMessage `json:"changes,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// AuditHistoryResponse is a list of change-history entries, newest first.
type AuditHistoryResponse struct {
	Items []AuditEntryResponse `json:"items"`
}

// FromAuditEntry converts an audit entry to its response shape.
func FromAuditEntry(e postgres.AuditEntry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:         e.ID.String(),
		EntityType: e.EntityType,
		EntityID:   e.EntityID.String(),
		Action:     e.Action,
		ActorID:    e.ActorID,
		Changes:    e.Changes,
		CreatedAt:  e.CreatedAt,
	}
}

// FromAuditEntries converts a history slice to its response shape.
func FromAuditEntries(entries []postgres.AuditEntry) AuditHistoryResponse {
	items := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, FromAuditEntry(e))
	}
	return AuditHistoryResponse{Items: items}
}
