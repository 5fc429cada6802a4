package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/bondcurve/internal/curve"
	"github.com/rovshanmuradov/bondcurve/internal/fee"
	"github.com/rovshanmuradov/bondcurve/internal/pricing"
)

type quoteOptions struct {
	side       string
	amount     uint64
	realValue  uint64
	realTokens uint64
	virtual    uint64
	feeBps     uint64
	discount   bool
}

type quoteOutput struct {
	Side     string         `json:"side"`
	Amount   uint64         `json:"amount"`
	Base     uint64         `json:"base"`
	Fee      uint64         `json:"fee"`
	Total    uint64         `json:"total"`
	Reserves curve.Reserves `json:"reserves"`
}

// newQuoteCmd prices a trade against the constant-product curve without any
// stored state.
func newQuoteCmd() *cobra.Command {
	defaults := curve.DefaultParams()
	opts := &quoteOptions{}

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a trade offline from explicit reserves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := opts.run()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.side, "side", "buy", "buy or sell")
	f.Uint64Var(&opts.amount, "amount", 0, "token amount")
	f.Uint64Var(&opts.realValue, "real-value", 0, "real value reserve")
	f.Uint64Var(&opts.realTokens, "real-tokens", 1_000_000_000_000, "real token reserve")
	f.Uint64Var(&opts.virtual, "virtual", defaults.VirtualValue, "virtual value reserve")
	f.Uint64Var(&opts.feeBps, "fee-bps", defaults.TradeFeeBps, "trade fee in basis points")
	f.BoolVar(&opts.discount, "discount", false, "waive the trade fee")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (o *quoteOptions) run() (quoteOutput, error) {
	calc, err := fee.New(o.feeBps)
	if err != nil {
		return quoteOutput{}, err
	}
	strat := pricing.ConstantProduct{Virtual: o.virtual}
	r := curve.Reserves{RealValue: o.realValue, RealTokens: o.realTokens}
	out := quoteOutput{Side: o.side, Amount: o.amount, Reserves: r}

	switch o.side {
	case "buy":
		if out.Base, err = strat.BuyPrice(r, o.amount); err != nil {
			return quoteOutput{}, err
		}
		out.Fee, out.Total, err = calc.BuyTotal(out.Base, o.discount)
	case "sell":
		if out.Base, err = strat.SellPrice(r, o.amount); err != nil {
			return quoteOutput{}, err
		}
		out.Fee, out.Total, err = calc.SellPayout(out.Base, o.discount)
	default:
		return quoteOutput{}, fmt.Errorf("unknown side %q", o.side)
	}
	if err != nil {
		return quoteOutput{}, err
	}
	return out, nil
}
