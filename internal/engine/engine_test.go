package engine

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/bondcurve/internal/curve"
	"github.com/rovshanmuradov/bondcurve/internal/ledger"
	"github.com/rovshanmuradov/bondcurve/internal/venue"
)

const testSupply = 1_000_000_000_000

type recorder struct {
	mu         sync.Mutex
	trades     []TradeRecord
	migrations []MigrationRecord
}

func (r *recorder) TradeExecuted(rec TradeRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trades = append(r.trades, rec)
}

func (r *recorder) CurveMigrated(rec MigrationRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.migrations = append(r.migrations, rec)
}

type harness struct {
	t      *testing.T
	ctx    context.Context
	engine *Engine
	store  *ledger.MemoryStore
	venue  *venue.Static
	rec    *recorder
	params curve.Params
}

func testParams() curve.Params {
	p := curve.DefaultParams()
	p.FeeCollector = solana.NewWallet().PublicKey()
	p.MigrationAdmin = solana.NewWallet().PublicKey()
	return p
}

func newHarness(t *testing.T, params curve.Params) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := ledger.NewMemoryStore(params.ProgramID)
	v := venue.NewStatic(params.VenueProgramID, logger)
	rec := &recorder{}

	e, err := New(store, v, params, rec, logger)
	require.NoError(t, err)
	return &harness{t: t, ctx: context.Background(), engine: e, store: store, venue: v, rec: rec, params: params}
}

func (h *harness) createCurve(cfg curve.Config) *curve.Curve {
	h.t.Helper()
	c, err := h.engine.CreateCurve(h.ctx, CreateRequest{
		Mint:        solana.NewWallet().PublicKey(),
		Creator:     solana.NewWallet().PublicKey(),
		Config:      cfg,
		TotalSupply: testSupply,
	})
	require.NoError(h.t, err)
	return c
}

func (h *harness) fund(amount uint64) solana.PublicKey {
	h.t.Helper()
	acct := solana.NewWallet().PublicKey()
	require.NoError(h.t, h.store.Atomic(h.ctx, func(tx ledger.Tx) error {
		_, err := tx.Deposit(h.ctx, acct, amount)
		return err
	}))
	return acct
}

func (h *harness) value(acct solana.PublicKey) uint64 {
	h.t.Helper()
	var v uint64
	require.NoError(h.t, h.store.View(h.ctx, func(tx ledger.Tx) error {
		var err error
		v, err = tx.ValueBalance(h.ctx, acct)
		return err
	}))
	return v
}

func (h *harness) tokens(mint, acct solana.PublicKey) uint64 {
	h.t.Helper()
	var v uint64
	require.NoError(h.t, h.store.View(h.ctx, func(tx ledger.Tx) error {
		var err error
		v, err = tx.TokenBalance(h.ctx, mint, acct)
		return err
	}))
	return v
}

func defaultConfig() curve.Config {
	return curve.Config{Type: curve.TypeConstantProduct, BasePrice: 1}
}

func TestNewRejectsInvalidParams(t *testing.T) {
	p := curve.DefaultParams()
	_, err := New(ledger.NewMemoryStore(p.ProgramID), nil, p, nil, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestCreateCurve(t *testing.T) {
	h := newHarness(t, testParams())
	c := h.createCurve(curve.Config{BasePrice: 1})

	assert.Equal(t, curve.TypeConstantProduct, c.Config.Type)
	assert.Equal(t, curve.StatusActive, c.Config.MigrationStatus)
	assert.Equal(t, uint64(testSupply), h.tokens(c.Mint, c.Vault.TokenAccount))

	_, err := h.engine.CreateCurve(h.ctx, CreateRequest{Mint: c.Mint, Config: defaultConfig(), TotalSupply: testSupply})
	assert.ErrorIs(t, err, curve.ErrCurveExists)

	_, err = h.engine.CreateCurve(h.ctx, CreateRequest{
		Mint:        solana.NewWallet().PublicKey(),
		Config:      curve.Config{Type: curve.TypeLinear, BasePrice: 1},
		TotalSupply: testSupply,
	})
	assert.ErrorIs(t, err, curve.ErrInvalidCurveConfig)

	r, err := h.engine.Reserves(h.ctx, c.Mint)
	require.NoError(t, err)
	assert.Equal(t, curve.Reserves{RealValue: 0, RealTokens: testSupply}, r)
}

func TestBuy(t *testing.T) {
	h := newHarness(t, testParams())
	c := h.createCurve(defaultConfig())
	buyer := h.fund(1_000_000_000)

	q, err := h.engine.QuoteBuy(h.ctx, c.Mint, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, Quote{Amount: 1_000_000, Base: 30_000, Fee: 300, Total: 30_300}, q)

	res, err := h.engine.Buy(h.ctx, BuyRequest{Mint: c.Mint, Buyer: buyer, Amount: 1_000_000, MaxValueCost: math.MaxUint64})
	require.NoError(t, err)
	assert.Equal(t, BuyResult{TokensBought: 1_000_000, ValuePaid: 30_300, Fee: 300}, res)

	assert.Equal(t, uint64(30_000), h.value(c.Vault.ValueAccount))
	assert.Equal(t, uint64(300), h.value(h.params.FeeCollector))
	assert.Equal(t, uint64(1_000_000_000-30_300), h.value(buyer))
	assert.Equal(t, uint64(1_000_000), h.tokens(c.Mint, buyer))

	require.Len(t, h.rec.trades, 1)
	trade := h.rec.trades[0]
	assert.Equal(t, SideBuy, trade.Side)
	assert.Equal(t, buyer, trade.Trader)
	assert.Equal(t, uint64(30_300), trade.Value)
	assert.Equal(t, curve.Reserves{RealValue: 30_000, RealTokens: testSupply - 1_000_000}, trade.Reserves)
	assert.NotEmpty(t, trade.ID)
}

func TestBuyDiscount(t *testing.T) {
	h := newHarness(t, testParams())
	c := h.createCurve(defaultConfig())
	buyer := h.fund(1_000_000_000)

	res, err := h.engine.Buy(h.ctx, BuyRequest{Mint: c.Mint, Buyer: buyer, Amount: 1_000_000, MaxValueCost: 30_000, Discount: true})
	require.NoError(t, err)
	assert.Zero(t, res.Fee)
	assert.Equal(t, uint64(30_000), res.ValuePaid)
	assert.Zero(t, h.value(h.params.FeeCollector))
}

func TestBuySlippage(t *testing.T) {
	h := newHarness(t, testParams())
	c := h.createCurve(defaultConfig())
	buyer := h.fund(1_000_000_000)

	_, err := h.engine.Buy(h.ctx, BuyRequest{Mint: c.Mint, Buyer: buyer, Amount: 1_000_000, MaxValueCost: 30_299})
	require.ErrorIs(t, err, curve.ErrPriceExceedsMaxCost)

	var slip *curve.SlippageError
	require.True(t, errors.As(err, &slip))
	assert.Equal(t, uint64(30_300), slip.Actual)
	assert.Equal(t, uint64(30_299), slip.Limit)
	assert.Equal(t, curve.CodePriceExceedsMaxCost, curve.Code(err))

	assert.Equal(t, uint64(1_000_000_000), h.value(buyer))
	assert.Empty(t, h.rec.trades)

	_, err = h.engine.Buy(h.ctx, BuyRequest{Mint: c.Mint, Buyer: buyer, Amount: 1_000_000, MaxValueCost: 30_300})
	require.NoError(t, err)
}

func TestBuyErrors(t *testing.T) {
	h := newHarness(t, testParams())
	c := h.createCurve(defaultConfig())
	buyer := h.fund(1_000_000_000)

	tests := []struct {
		name string
		req  BuyRequest
		err  error
	}{
		{name: "zero amount", req: BuyRequest{Mint: c.Mint, Buyer: buyer, MaxValueCost: math.MaxUint64}, err: curve.ErrInvalidAmount},
		{name: "unknown curve", req: BuyRequest{Mint: solana.NewWallet().PublicKey(), Buyer: buyer, Amount: 1, MaxValueCost: math.MaxUint64}, err: curve.ErrCurveNotFound},
		{name: "whole supply", req: BuyRequest{Mint: c.Mint, Buyer: buyer, Amount: testSupply, MaxValueCost: math.MaxUint64}, err: curve.ErrInsufficientLiquidity},
		{name: "unfunded buyer", req: BuyRequest{Mint: c.Mint, Buyer: solana.NewWallet().PublicKey(), Amount: 1_000_000, MaxValueCost: math.MaxUint64}, err: curve.ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.Buy(h.ctx, tt.req)
			assert.ErrorIs(t, err, tt.err)

			var te *curve.TradeError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, "buy", te.Op)
		})
	}
}

func TestBuyRollsBackOnPartialTransfer(t *testing.T) {
	h := newHarness(t, testParams())
	c := h.createCurve(defaultConfig())
	// enough for the base price, not for the fee
	buyer := h.fund(30_000)

	_, err := h.engine.Buy(h.ctx, BuyRequest{Mint: c.Mint, Buyer: buyer, Amount: 1_000_000, MaxValueCost: math.MaxUint64})
	require.ErrorIs(t, err, curve.ErrInsufficientFunds)

	assert.Equal(t, uint64(30_000), h.value(buyer))
	assert.Zero(t, h.value(c.Vault.ValueAccount))
	assert.Zero(t, h.tokens(c.Mint, buyer))
	assert.Equal(t, uint64(testSupply), h.tokens(c.Mint, c.Vault.TokenAccount))
}

func TestSell(t *testing.T) {
	h := newHarness(t, testParams())
	c := h.createCurve(defaultConfig())
	trader := h.fund(10_000_000_000)

	bought, err := h.engine.Buy(h.ctx, BuyRequest{Mint: c.Mint, Buyer: trader, Amount: 50_000_000, MaxValueCost: math.MaxUint64})
	require.NoError(t, err)

	q, err := h.engine.QuoteSell(h.ctx, c.Mint, 50_000_000)
	require.NoError(t, err)
	assert.Equal(t, q.Base-q.Fee, q.Total)

	_, err = h.engine.Sell(h.ctx, SellRequest{Mint: c.Mint, Seller: trader, Amount: 50_000_000, MinValueReturn: q.Total + 1})
	require.ErrorIs(t, err, curve.ErrPriceBelowMinReturn)
	assert.Equal(t, uint64(50_000_000), h.tokens(c.Mint, trader))

	res, err := h.engine.Sell(h.ctx, SellRequest{Mint: c.Mint, Seller: trader, Amount: 50_000_000, MinValueReturn: q.Total})
	require.NoError(t, err)
	assert.Equal(t, SellResult{ValueReturned: q.Total, Fee: q.Fee}, res)
	assert.LessOrEqual(t, res.ValueReturned, bought.ValuePaid)

	assert.Zero(t, h.tokens(c.Mint, trader))
	assert.Equal(t, uint64(testSupply), h.tokens(c.Mint, c.Vault.TokenAccount))
	assert.Equal(t, bought.Fee+res.Fee, h.value(h.params.FeeCollector))
	assert.Equal(t, 10_000_000_000-bought.ValuePaid+res.ValueReturned, h.value(trader))

	require.Len(t, h.rec.trades, 2)
	assert.Equal(t, SideSell, h.rec.trades[1].Side)
}

func TestSellErrors(t *testing.T) {
	h := newHarness(t, testParams())
	c := h.createCurve(defaultConfig())
	seller := solana.NewWallet().PublicKey()

	_, err := h.engine.Sell(h.ctx, SellRequest{Mint: c.Mint, Seller: seller})
	assert.ErrorIs(t, err, curve.ErrInvalidAmount)

	// nothing has been bought, so the vault cannot pay out
	_, err = h.engine.Sell(h.ctx, SellRequest{Mint: c.Mint, Seller: seller, Amount: 1_000_000})
	assert.ErrorIs(t, err, curve.ErrInsufficientLiquidity)
}

func TestSellRequiresTokens(t *testing.T) {
	h := newHarness(t, testParams())
	c := h.createCurve(defaultConfig())
	buyer := h.fund(10_000_000_000)
	_, err := h.engine.Buy(h.ctx, BuyRequest{Mint: c.Mint, Buyer: buyer, Amount: 10_000_000, MaxValueCost: math.MaxUint64})
	require.NoError(t, err)

	_, err = h.engine.Sell(h.ctx, SellRequest{Mint: c.Mint, Seller: solana.NewWallet().PublicKey(), Amount: 1_000_000})
	assert.ErrorIs(t, err, curve.ErrInsufficientFunds)
}

func TestMigrationTriggeredByBuy(t *testing.T) {
	h := newHarness(t, testParams())
	c := h.createCurve(defaultConfig())
	buyer := h.fund(200_000_000_000)

	res, err := h.engine.Buy(h.ctx, BuyRequest{Mint: c.Mint, Buyer: buyer, Amount: 800_000_000_000, MaxValueCost: math.MaxUint64})
	require.NoError(t, err)
	assert.True(t, res.Migrated)
	assert.Equal(t, uint64(121_200_000_000), res.ValuePaid)

	status, err := h.engine.MigrationStatus(h.ctx, c.Mint)
	require.NoError(t, err)
	assert.Equal(t, curve.StatusMigrated, status)

	stored, err := h.engine.Curve(h.ctx, c.Mint)
	require.NoError(t, err)
	require.NotNil(t, stored.MigratedAt)

	accounts, err := h.venue.PoolAccounts(c.Mint)
	require.NoError(t, err)

	const (
		remaining = 120_000_000_000 - 1_461_600 - 150_000_000
		poolToken = 159_798_051_200
		leftover  = 200_000_000_000 - poolToken
	)
	assert.Equal(t, uint64(h.params.RentFloor), h.value(c.Vault.ValueAccount))
	assert.Equal(t, uint64(remaining), h.value(accounts.ValueAccount))
	assert.Equal(t, uint64(150_000_000), h.value(accounts.FeeAccount))
	assert.Equal(t, uint64(poolToken), h.tokens(c.Mint, accounts.TokenAccount))
	assert.Equal(t, uint64(leftover), h.tokens(c.Mint, h.params.MigrationAdmin))
	assert.Zero(t, h.tokens(c.Mint, c.Vault.TokenAccount))

	require.Len(t, h.rec.migrations, 1)
	m := h.rec.migrations[0]
	assert.Equal(t, uint64(remaining), m.RealValueMoved)
	assert.Equal(t, uint64(poolToken), m.TokensMoved)
	assert.Equal(t, uint64(leftover), m.LeftoverTokens)
	assert.Equal(t, uint64(750_000), m.EffectivePrice)
	assert.Equal(t, h.params.VirtualValue, m.VirtualValue)
	assert.False(t, m.IsSubscribed)
	assert.Zero(t, m.DeveloperFee)
	assert.Equal(t, accounts.Pool, m.Pool)

	pool, ok := h.venue.Pool(c.Mint)
	require.True(t, ok)
	assert.Equal(t, uint64(poolToken), pool.Tokens)

	// trading is closed after migration
	_, err = h.engine.Buy(h.ctx, BuyRequest{Mint: c.Mint, Buyer: buyer, Amount: 1, MaxValueCost: math.MaxUint64})
	assert.ErrorIs(t, err, curve.ErrMigrationComplete)
	_, err = h.engine.Sell(h.ctx, SellRequest{Mint: c.Mint, Seller: buyer, Amount: 1})
	assert.ErrorIs(t, err, curve.ErrMigrationComplete)
	_, err = h.engine.QuoteBuy(h.ctx, c.Mint, 1)
	assert.ErrorIs(t, err, curve.ErrMigrationComplete)
	_, err = h.engine.Migrate(h.ctx, c.Mint)
	assert.ErrorIs(t, err, curve.ErrMigrationComplete)
}

func TestMigrationSubscribedPaysDeveloper(t *testing.T) {
	h := newHarness(t, testParams())
	dev := solana.NewWallet().PublicKey()
	c := h.createCurve(curve.Config{Type: curve.TypeConstantProduct, BasePrice: 1, IsSubscribed: true, Developer: dev})
	buyer := h.fund(200_000_000_000)

	res, err := h.engine.Buy(h.ctx, BuyRequest{Mint: c.Mint, Buyer: buyer, Amount: 800_000_000_000, MaxValueCost: math.MaxUint64})
	require.NoError(t, err)
	require.True(t, res.Migrated)

	assert.Equal(t, uint64(3_000_000_000), h.value(dev))
	require.Len(t, h.rec.migrations, 1)
	m := h.rec.migrations[0]
	assert.True(t, m.IsSubscribed)
	assert.Equal(t, dev, m.Developer)
	assert.Equal(t, uint64(116_848_538_400), m.RealValueMoved)
	assert.Equal(t, uint64(155_798_051_200), m.TokensMoved)
}

// unavailableVenue refuses to open pools.
type unavailableVenue struct {
	*venue.Static
}

var errVenueDown = errors.New("venue unavailable")

func (unavailableVenue) OpenPool(context.Context, venue.PoolSeed) (venue.Pool, error) {
	return venue.Pool{}, errVenueDown
}

func TestFailedMigrationRollsBackBuy(t *testing.T) {
	h := newHarness(t, testParams())
	e, err := New(h.store, unavailableVenue{h.venue}, h.params, h.rec, zaptest.NewLogger(t))
	require.NoError(t, err)
	h.engine = e

	c := h.createCurve(defaultConfig())
	buyer := h.fund(200_000_000_000)

	_, err = h.engine.Buy(h.ctx, BuyRequest{Mint: c.Mint, Buyer: buyer, Amount: 800_000_000_000, MaxValueCost: math.MaxUint64})
	require.ErrorIs(t, err, errVenueDown)

	assert.Equal(t, uint64(200_000_000_000), h.value(buyer))
	assert.Zero(t, h.value(c.Vault.ValueAccount))
	status, err := h.engine.MigrationStatus(h.ctx, c.Mint)
	require.NoError(t, err)
	assert.Equal(t, curve.StatusActive, status)
	_, ok := h.venue.Pool(c.Mint)
	assert.False(t, ok)
	assert.Empty(t, h.rec.trades)
}

func TestMigrateOnDemand(t *testing.T) {
	params := testParams()
	params.MigrationThreshold = 500_000_000_000
	h := newHarness(t, params)
	c := h.createCurve(defaultConfig())
	buyer := h.fund(200_000_000_000)

	res, err := h.engine.Buy(h.ctx, BuyRequest{Mint: c.Mint, Buyer: buyer, Amount: 800_000_000_000, MaxValueCost: math.MaxUint64})
	require.NoError(t, err)
	require.False(t, res.Migrated)

	_, err = h.engine.Migrate(h.ctx, c.Mint)
	assert.ErrorIs(t, err, curve.ErrThresholdNotReached)

	// same ledger, lower threshold
	params.MigrationThreshold = 80_000_000_000
	e, err := New(h.store, h.venue, params, h.rec, zaptest.NewLogger(t))
	require.NoError(t, err)

	rec, err := e.Migrate(h.ctx, c.Mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(159_798_051_200), rec.TokensMoved)
	require.Len(t, h.rec.migrations, 1)
}

func TestFailedCurveRejectsTrading(t *testing.T) {
	h := newHarness(t, testParams())
	c := h.createCurve(defaultConfig())
	buyer := h.fund(1_000_000)

	_, err := h.engine.Buy(h.ctx, BuyRequest{Mint: c.Mint, Buyer: buyer, Amount: 1_000_000, MaxValueCost: math.MaxUint64})
	require.NoError(t, err)

	require.NoError(t, h.store.Atomic(h.ctx, func(tx ledger.Tx) error {
		stored, err := tx.Curve(h.ctx, c.Mint)
		if err != nil {
			return err
		}
		stored.Config.MigrationStatus = curve.StatusFailed
		return tx.PutCurve(h.ctx, stored)
	}))
	h.rec.trades = nil

	status, err := h.engine.MigrationStatus(h.ctx, c.Mint)
	require.NoError(t, err)
	assert.Equal(t, curve.StatusFailed, status)

	ops := map[string]func() error{
		"buy": func() error {
			_, err := h.engine.Buy(h.ctx, BuyRequest{Mint: c.Mint, Buyer: buyer, Amount: 1, MaxValueCost: math.MaxUint64})
			return err
		},
		"sell": func() error {
			_, err := h.engine.Sell(h.ctx, SellRequest{Mint: c.Mint, Seller: buyer, Amount: 1})
			return err
		},
		"quote buy": func() error {
			_, err := h.engine.QuoteBuy(h.ctx, c.Mint, 1)
			return err
		},
		"quote sell": func() error {
			_, err := h.engine.QuoteSell(h.ctx, c.Mint, 1)
			return err
		},
		"quote tokens": func() error {
			_, err := h.engine.QuoteTokensForValue(h.ctx, c.Mint, 1_000)
			return err
		},
		"migrate": func() error {
			_, err := h.engine.Migrate(h.ctx, c.Mint)
			return err
		},
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, op(), curve.ErrMigrationComplete)
		})
	}

	assert.Equal(t, uint64(1_000_000), h.tokens(c.Mint, buyer))
	assert.Empty(t, h.rec.trades)
	assert.Empty(t, h.rec.migrations)
	_, ok := h.venue.Pool(c.Mint)
	assert.False(t, ok)
}

func TestQuotes(t *testing.T) {
	h := newHarness(t, testParams())
	c := h.createCurve(defaultConfig())

	tokens, err := h.engine.QuoteTokensForValue(h.ctx, c.Mint, 30_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), tokens)

	spot, err := h.engine.SpotPrice(h.ctx, c.Mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(30_000), spot)

	_, err = h.engine.QuoteBuy(h.ctx, c.Mint, 0)
	assert.ErrorIs(t, err, curve.ErrInvalidAmount)

	_, err = h.engine.QuoteSell(h.ctx, solana.NewWallet().PublicKey(), 1)
	assert.ErrorIs(t, err, curve.ErrCurveNotFound)
}

func TestLinearCurveTrades(t *testing.T) {
	h := newHarness(t, testParams())
	c := h.createCurve(curve.Config{Type: curve.TypeLinear, BasePrice: curve.PricePrecision, Slope: 1})
	buyer := h.fund(1_000_000_000)

	res, err := h.engine.Buy(h.ctx, BuyRequest{Mint: c.Mint, Buyer: buyer, Amount: 1_000, MaxValueCost: math.MaxUint64})
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), res.ValuePaid-res.Fee)

	spot, err := h.engine.SpotPrice(h.ctx, c.Mint)
	require.NoError(t, err)
	assert.Greater(t, spot, uint64(0))
}

func TestConcurrentBuys(t *testing.T) {
	h := newHarness(t, testParams())
	c := h.createCurve(defaultConfig())

	const workers = 16
	buyers := make([]solana.PublicKey, workers)
	for i := range buyers {
		buyers[i] = h.fund(1_000_000_000)
	}

	var (
		mu   sync.Mutex
		paid uint64
		fees uint64
	)
	g, ctx := errgroup.WithContext(h.ctx)
	for _, b := range buyers {
		g.Go(func() error {
			res, err := h.engine.Buy(ctx, BuyRequest{Mint: c.Mint, Buyer: b, Amount: 1_000_000, MaxValueCost: math.MaxUint64})
			if err != nil {
				return err
			}
			mu.Lock()
			paid += res.ValuePaid
			fees += res.Fee
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	r, err := h.engine.Reserves(h.ctx, c.Mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(testSupply-workers*1_000_000), r.RealTokens)
	assert.Equal(t, paid-fees, r.RealValue)
	assert.Equal(t, fees, h.value(h.params.FeeCollector))
	assert.Len(t, h.rec.trades, workers)
	assert.Zero(t, h.engine.locks.size())
}

func TestDepositAndBalance(t *testing.T) {
	h := newHarness(t, testParams())
	c := h.createCurve(defaultConfig())
	acct := solana.NewWallet().PublicKey()

	bal, err := h.engine.Deposit(h.ctx, acct, 5_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000_000), bal)
	bal, err = h.engine.Deposit(h.ctx, acct, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000_001), bal)

	_, err = h.engine.Deposit(h.ctx, acct, 0)
	assert.ErrorIs(t, err, curve.ErrInvalidAmount)
	_, err = h.engine.Deposit(h.ctx, c.Vault.ValueAccount, 10)
	assert.ErrorIs(t, err, curve.ErrUnauthorizedVault)

	_, err = h.engine.Buy(h.ctx, BuyRequest{Mint: c.Mint, Buyer: acct, Amount: 1_000, MaxValueCost: math.MaxUint64})
	require.NoError(t, err)

	b, err := h.engine.Balance(h.ctx, acct, solana.PublicKey{})
	require.NoError(t, err)
	assert.Nil(t, b.Mint)
	assert.Less(t, b.Value, uint64(5_000_001))

	b, err = h.engine.Balance(h.ctx, acct, c.Mint)
	require.NoError(t, err)
	require.NotNil(t, b.Mint)
	assert.Equal(t, c.Mint, *b.Mint)
	assert.Equal(t, uint64(1_000), b.Tokens)
}
