// internal/storage/gormstore/convert.go
package gormstore

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/bondcurve/internal/curve"
	"github.com/rovshanmuradov/bondcurve/internal/engine"
	"github.com/rovshanmuradov/bondcurve/internal/storage/models"
)

func curveToModel(c *curve.Curve) *models.Curve {
	return &models.Curve{
		Mint:            c.Mint.String(),
		Creator:         c.Creator.String(),
		CurveType:       string(c.Config.Type),
		BasePrice:       c.Config.BasePrice,
		Slope:           c.Config.Slope,
		Exponent:        c.Config.Exponent,
		LogBase:         c.Config.LogBase,
		StepSize:        c.Config.StepSize,
		MigrationStatus: string(c.Config.MigrationStatus),
		IsSubscribed:    c.Config.IsSubscribed,
		Developer:       c.Config.Developer.String(),
		TotalSupply:     c.TotalSupply,
		ValueAccount:    c.Vault.ValueAccount.String(),
		TokenAccount:    c.Vault.TokenAccount.String(),
		VaultGrant:      c.Vault.Grant,
		LaunchedAt:      c.CreatedAt,
		MigratedAt:      c.MigratedAt,
	}
}

// keys parses base58 columns in order, stopping at the first bad one.
type keys struct {
	err error
}

func (k *keys) parse(column, s string) solana.PublicKey {
	if k.err != nil {
		return solana.PublicKey{}
	}
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		k.err = fmt.Errorf("corrupt %s %q: %w", column, s, err)
	}
	return pk
}

func curveFromModel(m *models.Curve) (*curve.Curve, error) {
	var k keys
	mint := k.parse("mint", m.Mint)
	c := &curve.Curve{
		Mint:    mint,
		Creator: k.parse("creator", m.Creator),
		Config: curve.Config{
			Type:            curve.Type(m.CurveType),
			BasePrice:       m.BasePrice,
			Slope:           m.Slope,
			Exponent:        m.Exponent,
			LogBase:         m.LogBase,
			StepSize:        m.StepSize,
			MigrationStatus: curve.MigrationStatus(m.MigrationStatus),
			IsSubscribed:    m.IsSubscribed,
			Developer:       k.parse("developer", m.Developer),
		},
		TotalSupply: m.TotalSupply,
		Vault: curve.Vault{
			Mint:         mint,
			ValueAccount: k.parse("value_account", m.ValueAccount),
			TokenAccount: k.parse("token_account", m.TokenAccount),
			Grant:        m.VaultGrant,
		},
		CreatedAt:  m.LaunchedAt.UTC(),
		MigratedAt: m.MigratedAt,
	}
	if k.err != nil {
		return nil, k.err
	}
	return c, nil
}

func tradeToModel(r engine.TradeRecord) *models.Trade {
	return &models.Trade{
		TradeID:    r.ID,
		Side:       string(r.Side),
		Mint:       r.Mint.String(),
		Trader:     r.Trader.String(),
		Amount:     r.Amount,
		Value:      r.Value,
		Fee:        r.Fee,
		Discount:   r.Discount,
		RealValue:  r.Reserves.RealValue,
		RealTokens: r.Reserves.RealTokens,
		ExecutedAt: r.ExecutedAt,
	}
}

func tradeFromModel(m *models.Trade) (engine.TradeRecord, error) {
	var k keys
	r := engine.TradeRecord{
		ID:         m.TradeID,
		Side:       engine.Side(m.Side),
		Mint:       k.parse("mint", m.Mint),
		Trader:     k.parse("trader", m.Trader),
		Amount:     m.Amount,
		Value:      m.Value,
		Fee:        m.Fee,
		Discount:   m.Discount,
		Reserves:   curve.Reserves{RealValue: m.RealValue, RealTokens: m.RealTokens},
		ExecutedAt: m.ExecutedAt.UTC(),
	}
	return r, k.err
}

func migrationToModel(r engine.MigrationRecord) *models.Migration {
	return &models.Migration{
		Mint:           r.Mint.String(),
		Pool:           r.Pool.String(),
		RealValueMoved: r.RealValueMoved,
		VirtualValue:   r.VirtualValue,
		TokensMoved:    r.TokensMoved,
		EffectivePrice: r.EffectivePrice,
		Developer:      r.Developer.String(),
		IsSubscribed:   r.IsSubscribed,
		DeveloperFee:   r.DeveloperFee,
		ListingFee:     r.ListingFee,
		LeftoverTokens: r.LeftoverTokens,
		MigratedAt:     r.MigratedAt,
	}
}

func migrationFromModel(m *models.Migration) (engine.MigrationRecord, error) {
	var k keys
	r := engine.MigrationRecord{
		Mint:           k.parse("mint", m.Mint),
		Pool:           k.parse("pool", m.Pool),
		RealValueMoved: m.RealValueMoved,
		VirtualValue:   m.VirtualValue,
		TokensMoved:    m.TokensMoved,
		EffectivePrice: m.EffectivePrice,
		Developer:      k.parse("developer", m.Developer),
		IsSubscribed:   m.IsSubscribed,
		DeveloperFee:   m.DeveloperFee,
		ListingFee:     m.ListingFee,
		LeftoverTokens: m.LeftoverTokens,
		MigratedAt:     m.MigratedAt.UTC(),
	}
	return r, k.err
}
