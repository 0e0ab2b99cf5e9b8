package model

import "time"

const AuditActionMarginCallSuspension = "margin_call_suspension"

// AuditLog records automatic account actions.
type AuditLog struct {
	ID        uint                   `gorm:"primaryKey" json:"id"`
	UserID    string                 `gorm:"size:64;not null;index" json:"user_id"`
	Action    string                 `gorm:"size:60;not null;index" json:"action"`
	Details   map[string]interface{} `gorm:"serializer:json;type:jsonb" json:"details"`
	CreatedAt time.Time              `json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
