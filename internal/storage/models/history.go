// internal/storage/models/history.go
package models

import "time"

type Trade struct {
	BaseModel
	TradeID    string    `gorm:"uniqueIndex;not null;type:varchar(36)"`
	Side       string    `gorm:"not null;type:varchar(4)"`
	Mint       string    `gorm:"index;not null;type:varchar(44)"`
	Trader     string    `gorm:"index;not null;type:varchar(44)"`
	Amount     uint64    `gorm:"not null"`
	Value      uint64    `gorm:"not null"`
	Fee        uint64    `gorm:"not null"`
	Discount   bool      `gorm:"not null;default:false"`
	RealValue  uint64    `gorm:"not null"`
	RealTokens uint64    `gorm:"not null"`
	ExecutedAt time.Time `gorm:"index;not null"`
}

type Migration struct {
	BaseModel
	Mint           string `gorm:"uniqueIndex;not null;type:varchar(44)"`
	Pool           string `gorm:"not null;type:varchar(44)"`
	RealValueMoved uint64 `gorm:"not null"`
	VirtualValue   uint64 `gorm:"not null"`
	TokensMoved    uint64 `gorm:"not null"`
	EffectivePrice uint64 `gorm:"not null"`
	Developer      string `gorm:"type:varchar(44)"`
	IsSubscribed   bool   `gorm:"not null;default:false"`
	DeveloperFee   uint64
	ListingFee     uint64
	LeftoverTokens uint64
	MigratedAt     time.Time `gorm:"index;not null"`
}
