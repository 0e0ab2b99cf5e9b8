package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	AccountStatusPending   = "pending"
	AccountStatusActive    = "active"
	AccountStatusSuspended = "suspended"
	AccountStatusClosed    = "closed"

	KYCStatusUnverified = "unverified"
	KYCStatusPending    = "pending"
	KYCStatusVerified   = "verified"
)

// Profile holds the trading account of a single user.
// Balance is realized cash; MarginUsed is collateral reserved by open positions.
type Profile struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	UserID        string          `gorm:"size:64;uniqueIndex;not null" json:"user_id"`
	Balance       decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"balance"`
	MarginUsed    decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"margin_used"`
	FreeMargin    decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"free_margin"`
	Equity        decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"equity"`
	AccountStatus string          `gorm:"size:20;not null;default:pending" json:"account_status"`
	KYCStatus     string          `gorm:"column:kyc_status;size:20;not null;default:unverified" json:"kyc_status"`
	// Version is bumped on every balance mutation and used for conditional updates.
	Version   int64     `gorm:"not null;default:0" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Profile) TableName() string {
	return "profiles"
}

func (p *Profile) IsActive() bool {
	return p.AccountStatus == AccountStatusActive
}

func (p *Profile) IsKYCVerified() bool {
	return p.KYCStatus == KYCStatusVerified
}
