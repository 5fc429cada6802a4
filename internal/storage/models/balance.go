// internal/storage/models/balance.go
package models

import "time"

// ValueBalance is the settlement value held by one account.
type ValueBalance struct {
	Account   string `gorm:"primaryKey;type:varchar(44)"`
	Amount    uint64 `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

// TokenBalance is the amount of one mint held by one account.
type TokenBalance struct {
	Mint      string `gorm:"primaryKey;type:varchar(44)"`
	Account   string `gorm:"primaryKey;type:varchar(44)"`
	Amount    uint64 `gorm:"not null;default:0"`
	UpdatedAt time.Time
}
