// =============================
// File: internal/curve/types.go
// =============================
package curve

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
)

// Type selects the pricing shape of a curve.
type Type string

const (
	TypeLinear          Type = "linear"
	TypeExponential     Type = "exponential"
	TypeLogarithmic     Type = "logarithmic"
	TypeConstantProduct Type = "constant_product"
)

// ParseType converts a config/API string into a Type.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case TypeLinear, TypeExponential, TypeLogarithmic, TypeConstantProduct:
		return t, nil
	case "":
		return TypeConstantProduct, nil
	default:
		return "", fmt.Errorf("%w: unknown curve type %q", ErrInvalidCurveConfig, s)
	}
}

// MigrationStatus is the lifecycle state of a curve. Active is the only state
// in which trading is allowed; Migrated and Failed are terminal.
type MigrationStatus string

const (
	StatusActive   MigrationStatus = "active"
	StatusMigrated MigrationStatus = "migrated"
	StatusFailed   MigrationStatus = "failed"
)

// Terminal reports whether no transition leaves s.
func (s MigrationStatus) Terminal() bool {
	return s == StatusMigrated || s == StatusFailed
}

// MaxSteps bounds the number of price steps a stepped curve may span.
const MaxSteps = 10_000

// Config is the static configuration of one curve instance.
type Config struct {
	Type      Type   `json:"curve_type"`
	BasePrice uint64 `json:"base_price"`

	// Shape parameters, interpreted per Type.
	Slope    uint64 `json:"slope,omitempty"`     // linear
	Exponent uint64 `json:"exponent,omitempty"`  // exponential, growth per step in bps
	LogBase  uint64 `json:"log_base,omitempty"`  // logarithmic
	StepSize uint64 `json:"step_size,omitempty"` // exponential, logarithmic

	MigrationStatus MigrationStatus  `json:"migration_status"`
	IsSubscribed    bool             `json:"is_subscribed"`
	Developer       solana.PublicKey `json:"developer"`
}

// Validate checks the shape parameters for a curve with the given supply.
func (c Config) Validate(totalSupply uint64) error {
	if c.BasePrice == 0 {
		return fmt.Errorf("%w: base price must be greater than 0", ErrInvalidCurveConfig)
	}
	if totalSupply == 0 {
		return fmt.Errorf("%w: total supply must be greater than 0", ErrInvalidCurveConfig)
	}
	if c.MigrationStatus != StatusActive {
		return fmt.Errorf("%w: new curve must be active, got %q", ErrInvalidCurveConfig, c.MigrationStatus)
	}
	if c.IsSubscribed && c.Developer.IsZero() {
		return fmt.Errorf("%w: subscribed curve requires a developer", ErrInvalidCurveConfig)
	}

	switch c.Type {
	case TypeConstantProduct:
	case TypeLinear:
		if c.Slope == 0 {
			return fmt.Errorf("%w: linear curve requires slope > 0", ErrInvalidCurveConfig)
		}
	case TypeExponential:
		if c.Exponent == 0 {
			return fmt.Errorf("%w: exponential curve requires exponent > 0", ErrInvalidCurveConfig)
		}
		return validateSteps(c.StepSize, totalSupply)
	case TypeLogarithmic:
		if c.LogBase <= 1 {
			return fmt.Errorf("%w: log base must be greater than 1", ErrInvalidCurveConfig)
		}
		return validateSteps(c.StepSize, totalSupply)
	default:
		return fmt.Errorf("%w: invalid curve type %q", ErrInvalidCurveConfig, c.Type)
	}
	return nil
}

func validateSteps(stepSize, totalSupply uint64) error {
	if stepSize == 0 {
		return fmt.Errorf("%w: stepped curve requires step size > 0", ErrInvalidCurveConfig)
	}
	if totalSupply/stepSize > MaxSteps {
		return fmt.Errorf("%w: %d steps exceed limit %d", ErrInvalidCurveConfig, totalSupply/stepSize, MaxSteps)
	}
	return nil
}

// Reserves is a point-in-time view of the real balances held by a curve's
// vaults. It is read from the ledger for every pricing call and never cached.
type Reserves struct {
	RealValue  uint64 `json:"real_value"`
	RealTokens uint64 `json:"real_tokens"`
}

// Vault is the authority over one curve's value and token vaults. It is
// issued by the ledger when the curve is created and must be presented for
// every transfer out of either vault.
type Vault struct {
	Mint         solana.PublicKey `json:"mint"`
	ValueAccount solana.PublicKey `json:"value_account"`
	TokenAccount solana.PublicKey `json:"token_account"`
	Grant        string           `json:"-"`
}

// Curve is the persisted record of one token sale. It outlives migration.
type Curve struct {
	Mint        solana.PublicKey `json:"mint"`
	Creator     solana.PublicKey `json:"creator"`
	Config      Config           `json:"config"`
	TotalSupply uint64           `json:"total_supply"`
	Vault       Vault            `json:"vault"`
	CreatedAt   time.Time        `json:"created_at"`
	MigratedAt  *time.Time       `json:"migrated_at,omitempty"`
}

// Active reports whether the curve still accepts trades.
func (c *Curve) Active() bool {
	return c.Config.MigrationStatus == StatusActive
}
