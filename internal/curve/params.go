// internal/curve/params.go
package curve

import (
	"fmt"
	"math/bits"

	"github.com/gagliardetto/solana-go"
)

const (
	// BpsDenominator is the basis-point scale for fee rates.
	BpsDenominator = 10_000

	// PricePrecision scales shape parameters of the non constant-product curves.
	PricePrecision = 1_000_000
)

// Known program addresses used as derivation roots for vaults and pools.
var (
	DefaultProgramID      = solana.MustPublicKeyFromBase58("5EgejWaVQjxQ8ydLHvPdBpDGvkKioS1Uk3amGKqSx2zg")
	DefaultVenueProgramID = solana.MustPublicKeyFromBase58("CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C")
)

// Params are the protocol-wide constants shared by every curve.
type Params struct {
	VirtualValue       uint64 // added to the real value balance for pricing only
	MigrationThreshold uint64 // real value balance that triggers migration
	TradeFeeBps        uint64
	DeveloperFee       uint64 // paid to a subscribed developer on migration
	ListingFee         uint64 // paid to the venue on migration
	RentFloor          uint64 // minimum balance the value vault retains
	TokenDecimals      uint8

	FeeCollector   solana.PublicKey
	MigrationAdmin solana.PublicKey
	ProgramID      solana.PublicKey
	VenueProgramID solana.PublicKey
}

// DefaultParams returns the mainnet-style protocol constants. Fee collector
// and migration admin are left zero and must be configured.
func DefaultParams() Params {
	return Params{
		VirtualValue:       30 * solana.LAMPORTS_PER_SOL,
		MigrationThreshold: 80 * solana.LAMPORTS_PER_SOL,
		TradeFeeBps:        100,
		DeveloperFee:       3 * solana.LAMPORTS_PER_SOL,
		ListingFee:         150_000_000,
		RentFloor:          1_461_600,
		TokenDecimals:      6,
		ProgramID:          DefaultProgramID,
		VenueProgramID:     DefaultVenueProgramID,
	}
}

// Validate checks the parameters for internal consistency.
func (p Params) Validate() error {
	if p.TradeFeeBps > BpsDenominator {
		return fmt.Errorf("trade fee %d bps exceeds %d", p.TradeFeeBps, BpsDenominator)
	}
	if p.VirtualValue == 0 {
		return fmt.Errorf("virtual value must be greater than 0")
	}
	if p.MigrationThreshold == 0 {
		return fmt.Errorf("migration threshold must be greater than 0")
	}
	// a subscribed curve pays all three out of the threshold balance
	costs, carry := bits.Add64(p.RentFloor, p.DeveloperFee, 0)
	costs, carry2 := bits.Add64(costs, p.ListingFee, carry)
	if carry2 != 0 {
		return fmt.Errorf("rent floor, developer fee and listing fee overflow")
	}
	if p.MigrationThreshold < costs {
		return fmt.Errorf("migration threshold %d is below rent floor plus developer and listing fees (%d)",
			p.MigrationThreshold, costs)
	}
	if p.FeeCollector.IsZero() {
		return fmt.Errorf("fee collector is required")
	}
	if p.MigrationAdmin.IsZero() {
		return fmt.Errorf("migration admin is required")
	}
	if p.ProgramID.IsZero() {
		return fmt.Errorf("program id is required")
	}
	if p.VenueProgramID.IsZero() {
		return fmt.Errorf("venue program id is required")
	}
	if p.TokenDecimals > 18 {
		return fmt.Errorf("token decimals %d out of range", p.TokenDecimals)
	}
	return nil
}
