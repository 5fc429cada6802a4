// =============================
// File: internal/curve/errors.go
// =============================
package curve

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Error taxonomy of the engine. Every failure returned by pricing, fee and
// trade code wraps exactly one of these, so callers can match with errors.Is.
var (
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrMathOverflow          = errors.New("math operation overflow")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity in pool")
	ErrPriceExceedsMaxCost   = errors.New("price exceeds maximum cost")
	ErrPriceBelowMinReturn   = errors.New("price below minimum return")
	ErrMigrationComplete     = errors.New("curve has migrated, trading is closed")
	ErrInvalidCurveConfig    = errors.New("invalid curve configuration")

	ErrInvalidFee          = errors.New("fee exceeds trade value")
	ErrCurveNotFound       = errors.New("curve not found")
	ErrCurveExists         = errors.New("curve already exists")
	ErrThresholdNotReached = errors.New("migration threshold not reached")
	ErrUnauthorizedVault   = errors.New("vault authority mismatch")
	ErrInsufficientFunds   = errors.New("insufficient funds")
)

// Stable codes exposed to API clients and metric labels.
const (
	CodeInvalidAmount         = "invalid_amount"
	CodeMathOverflow          = "math_overflow"
	CodeInsufficientLiquidity = "insufficient_liquidity"
	CodePriceExceedsMaxCost   = "price_exceeds_max_cost"
	CodePriceBelowMinReturn   = "price_below_min_return"
	CodeMigrationComplete     = "migration_complete"
	CodeInvalidCurveConfig    = "invalid_curve_config"
	CodeInvalidFee            = "invalid_fee"
	CodeCurveNotFound         = "curve_not_found"
	CodeCurveExists           = "curve_exists"
	CodeThresholdNotReached   = "threshold_not_reached"
	CodeUnauthorizedVault     = "unauthorized_vault"
	CodeInsufficientFunds     = "insufficient_funds"
	CodeInternal              = "internal"
)

var codes = []struct {
	err  error
	code string
}{
	{ErrInvalidAmount, CodeInvalidAmount},
	{ErrMathOverflow, CodeMathOverflow},
	{ErrInsufficientLiquidity, CodeInsufficientLiquidity},
	{ErrPriceExceedsMaxCost, CodePriceExceedsMaxCost},
	{ErrPriceBelowMinReturn, CodePriceBelowMinReturn},
	{ErrMigrationComplete, CodeMigrationComplete},
	{ErrInvalidCurveConfig, CodeInvalidCurveConfig},
	{ErrInvalidFee, CodeInvalidFee},
	{ErrCurveNotFound, CodeCurveNotFound},
	{ErrCurveExists, CodeCurveExists},
	{ErrThresholdNotReached, CodeThresholdNotReached},
	{ErrUnauthorizedVault, CodeUnauthorizedVault},
	{ErrInsufficientFunds, CodeInsufficientFunds},
}

// Code returns the stable string code for err, or CodeInternal when err does
// not belong to the taxonomy.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// TradeError attaches the operation and curve to a failure.
type TradeError struct {
	Op   string
	Mint solana.PublicKey
	Err  error
}

func (e *TradeError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Mint, e.Err)
}

func (e *TradeError) Unwrap() error {
	return e.Err
}

// SlippageError reports a violated caller bound. Err is either
// ErrPriceExceedsMaxCost or ErrPriceBelowMinReturn.
type SlippageError struct {
	Amount uint64 // token units of the trade
	Limit  uint64 // caller-supplied bound
	Actual uint64 // computed cost or payout
	Err    error
}

func (e *SlippageError) Error() string {
	return fmt.Sprintf("%v: amount %d requires %d, limit %d", e.Err, e.Amount, e.Actual, e.Limit)
}

func (e *SlippageError) Unwrap() error {
	return e.Err
}
