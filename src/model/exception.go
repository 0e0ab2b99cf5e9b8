package model

import "time"

// Exception is an unexpected error persisted for later inspection.
type Exception struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Service string `gorm:"size:100;index" json:"service"` // e.g. "api"
	Module  string `gorm:"size:100;index" json:"module"`  // e.g. "orders_handler"
	Method  string `gorm:"size:100" json:"method"`        // e.g. "POST /api/orders"
	UserID  string `gorm:"size:64;index" json:"user_id,omitempty"`

	Message string `gorm:"type:text" json:"message"`
	Stack   string `gorm:"type:text" json:"stack"`

	Level string `gorm:"size:20;index" json:"level"` // warn | error | fatal

	Context string `gorm:"type:text" json:"context,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (Exception) TableName() string {
	return "exceptions"
}
