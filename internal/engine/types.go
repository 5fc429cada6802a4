// =============================
// File: internal/engine/types.go
// =============================
package engine

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/bondcurve/internal/curve"
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// BuyRequest takes Amount tokens from the curve for at most MaxValueCost.
type BuyRequest struct {
	Mint         solana.PublicKey `json:"mint"`
	Buyer        solana.PublicKey `json:"buyer"`
	Amount       uint64           `json:"amount"`
	MaxValueCost uint64           `json:"max_value_cost"`
	Discount     bool             `json:"discount"`
}

type BuyResult struct {
	TokensBought uint64 `json:"tokens_bought"`
	ValuePaid    uint64 `json:"value_paid"` // base price plus fee
	Fee          uint64 `json:"fee"`
	Migrated     bool   `json:"migrated"`
}

// SellRequest returns Amount tokens to the curve for at least MinValueReturn.
type SellRequest struct {
	Mint           solana.PublicKey `json:"mint"`
	Seller         solana.PublicKey `json:"seller"`
	Amount         uint64           `json:"amount"`
	MinValueReturn uint64           `json:"min_value_return"`
	Discount       bool             `json:"discount"`
}

type SellResult struct {
	ValueReturned uint64 `json:"value_returned"`
	Fee           uint64 `json:"fee"`
}

// CreateRequest launches a new curve for Mint.
type CreateRequest struct {
	Mint        solana.PublicKey `json:"mint"`
	Creator     solana.PublicKey `json:"creator"`
	Config      curve.Config     `json:"config"`
	TotalSupply uint64           `json:"total_supply"`
}

// Quote is a non-binding price for a trade of Amount tokens. For buys Total
// is base plus fee, for sells it is base minus fee.
type Quote struct {
	Amount uint64 `json:"amount"`
	Base   uint64 `json:"base"`
	Fee    uint64 `json:"fee"`
	Total  uint64 `json:"total"`
}

// TradeRecord is emitted after every committed trade.
type TradeRecord struct {
	ID         string           `json:"id"`
	Side       Side             `json:"side"`
	Mint       solana.PublicKey `json:"mint"`
	Trader     solana.PublicKey `json:"trader"`
	Amount     uint64           `json:"amount"`
	Value      uint64           `json:"value"` // paid by a buyer or received by a seller
	Fee        uint64           `json:"fee"`
	Discount   bool             `json:"discount"`
	Reserves   curve.Reserves   `json:"reserves"` // after the trade
	ExecutedAt time.Time        `json:"executed_at"`
}

// MigrationRecord is emitted once per curve when its reserves move to the
// venue.
type MigrationRecord struct {
	Mint           solana.PublicKey `json:"mint"`
	Pool           solana.PublicKey `json:"pool"`
	RealValueMoved uint64           `json:"real_value_moved"`
	VirtualValue   uint64           `json:"virtual_value"`
	TokensMoved    uint64           `json:"tokens_moved"`
	EffectivePrice uint64           `json:"effective_price"`
	Developer      solana.PublicKey `json:"developer"`
	IsSubscribed   bool             `json:"is_subscribed"`
	DeveloperFee   uint64           `json:"developer_fee"`
	ListingFee     uint64           `json:"listing_fee"`
	LeftoverTokens uint64           `json:"leftover_tokens"`
	MigratedAt     time.Time        `json:"migrated_at"`
}

// Publisher receives records after their transaction commits.
type Publisher interface {
	TradeExecuted(rec TradeRecord)
	CurveMigrated(rec MigrationRecord)
}

type nopPublisher struct{}

func (nopPublisher) TradeExecuted(TradeRecord)     {}
func (nopPublisher) CurveMigrated(MigrationRecord) {}
