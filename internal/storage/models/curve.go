// internal/storage/models/curve.go
package models

import "time"

// Curve is the persisted form of curve.Curve. Public keys are stored base58.
type Curve struct {
	BaseModel
	Mint            string `gorm:"uniqueIndex;not null;type:varchar(44)"`
	Creator         string `gorm:"not null;type:varchar(44)"`
	CurveType       string `gorm:"not null;type:varchar(20)"`
	BasePrice       uint64 `gorm:"not null"`
	Slope           uint64
	Exponent        uint64
	LogBase         uint64
	StepSize        uint64
	MigrationStatus string `gorm:"index;not null;type:varchar(20)"`
	IsSubscribed    bool   `gorm:"not null;default:false"`
	Developer       string `gorm:"type:varchar(44)"`
	TotalSupply     uint64 `gorm:"not null"`
	ValueAccount    string `gorm:"not null;type:varchar(44)"`
	TokenAccount    string `gorm:"not null;type:varchar(44)"`
	VaultGrant      string `gorm:"not null;type:varchar(36)"`

	LaunchedAt time.Time `gorm:"not null"`
	MigratedAt *time.Time
}

// Vault maps a vault account to the curve that owns it.
type Vault struct {
	BaseModel
	Account string `gorm:"uniqueIndex;not null;type:varchar(44)"`
	Mint    string `gorm:"index;not null;type:varchar(44)"`
	Kind    string `gorm:"not null;type:varchar(10)"` // value | token
	Grant   string `gorm:"not null;type:varchar(36)"`
}
