// internal/api/handlers.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/bondcurve/internal/curve"
	"github.com/rovshanmuradov/bondcurve/internal/engine"
)

const (
	defaultTradesLimit = 50
	maxTradesLimit     = 500
	maxBodyBytes       = 1 << 16
)

// CurveResponse is a curve together with its live reserves.
type CurveResponse struct {
	*curve.Curve
	Reserves curve.Reserves `json:"reserves"`
}

type createCurveRequest struct {
	Mint        solana.PublicKey `json:"mint"`
	Creator     solana.PublicKey `json:"creator"`
	Config      curve.Config     `json:"config"`
	TotalSupply uint64           `json:"total_supply"`
}

type buyRequest struct {
	Buyer        solana.PublicKey `json:"buyer"`
	Amount       uint64           `json:"amount"`
	MaxValueCost uint64           `json:"max_value_cost"`
	Discount     bool             `json:"discount"`
}

type sellRequest struct {
	Seller         solana.PublicKey `json:"seller"`
	Amount         uint64           `json:"amount"`
	MinValueReturn uint64           `json:"min_value_return"`
	Discount       bool             `json:"discount"`
}

type depositRequest struct {
	Amount uint64 `json:"amount"`
}

func (s *Server) createCurve(w http.ResponseWriter, r *http.Request) {
	var req createCurveRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	start := time.Now()
	c, err := s.engine.CreateCurve(r.Context(), engine.CreateRequest{
		Mint:        req.Mint,
		Creator:     req.Creator,
		Config:      req.Config,
		TotalSupply: req.TotalSupply,
	})
	s.metrics.TrackOperation("create", start, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, c)
}

func (s *Server) getCurve(w http.ResponseWriter, r *http.Request) {
	mint, err := pathKey(r, "mint")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.engine.Curve(r.Context(), mint)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	reserves, err := s.engine.Reserves(r.Context(), mint)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, CurveResponse{Curve: c, Reserves: reserves})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	mint, err := pathKey(r, "mint")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status, err := s.engine.MigrationStatus(r.Context(), mint)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"mint":             mint,
		"migration_status": status,
	})
}

func (s *Server) getPrice(w http.ResponseWriter, r *http.Request) {
	mint, err := pathKey(r, "mint")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	price, err := s.engine.SpotPrice(r.Context(), mint)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"mint":       mint,
		"spot_price": price,
	})
}

func (s *Server) quoteBuy(w http.ResponseWriter, r *http.Request) {
	mint, amount, err := mintAndUint(r, "amount")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q, err := s.engine.QuoteBuy(r.Context(), mint, amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, q)
}

func (s *Server) quoteSell(w http.ResponseWriter, r *http.Request) {
	mint, amount, err := mintAndUint(r, "amount")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q, err := s.engine.QuoteSell(r.Context(), mint, amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, q)
}

func (s *Server) quoteTokens(w http.ResponseWriter, r *http.Request) {
	mint, value, err := mintAndUint(r, "value")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tokens, err := s.engine.QuoteTokensForValue(r.Context(), mint, value)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]uint64{
		"value":  value,
		"tokens": tokens,
	})
}

func (s *Server) buy(w http.ResponseWriter, r *http.Request) {
	mint, err := pathKey(r, "mint")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req buyRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	start := time.Now()
	res, err := s.engine.Buy(r.Context(), engine.BuyRequest{
		Mint:         mint,
		Buyer:        req.Buyer,
		Amount:       req.Amount,
		MaxValueCost: req.MaxValueCost,
		Discount:     req.Discount,
	})
	s.metrics.TrackOperation("buy", start, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) sell(w http.ResponseWriter, r *http.Request) {
	mint, err := pathKey(r, "mint")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req sellRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	start := time.Now()
	res, err := s.engine.Sell(r.Context(), engine.SellRequest{
		Mint:           mint,
		Seller:         req.Seller,
		Amount:         req.Amount,
		MinValueReturn: req.MinValueReturn,
		Discount:       req.Discount,
	})
	s.metrics.TrackOperation("sell", start, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) migrate(w http.ResponseWriter, r *http.Request) {
	mint, err := pathKey(r, "mint")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	start := time.Now()
	rec, err := s.engine.Migrate(r.Context(), mint)
	s.metrics.TrackOperation("migrate", start, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) listTrades(w http.ResponseWriter, r *http.Request) {
	mint, err := pathKey(r, "mint")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := optionalInt(r, "limit", defaultTradesLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if limit <= 0 || limit > maxTradesLimit {
		s.writeError(w, r, errBadRequest(fmt.Sprintf("limit must be between 1 and %d", maxTradesLimit)))
		return
	}
	offset, err := optionalInt(r, "offset", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if offset < 0 {
		s.writeError(w, r, errBadRequest("offset must not be negative"))
		return
	}

	trades, err := s.history.ListTrades(r.Context(), mint, limit, offset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"mint":   mint,
		"trades": trades,
	})
}

func (s *Server) getMigration(w http.ResponseWriter, r *http.Request) {
	mint, err := pathKey(r, "mint")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.history.Migration(r.Context(), mint)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	account, err := pathKey(r, "account")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req depositRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	start := time.Now()
	bal, err := s.engine.Deposit(r.Context(), account, req.Amount)
	s.metrics.TrackOperation("deposit", start, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, engine.Balance{Account: account, Value: bal})
}

func (s *Server) balance(w http.ResponseWriter, r *http.Request) {
	account, err := pathKey(r, "account")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var mint solana.PublicKey
	if raw := r.URL.Query().Get("mint"); raw != "" {
		if mint, err = parseKey("mint", raw); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	b, err := s.engine.Balance(r.Context(), account, mint)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, b)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to encode response", zap.Error(err))
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errBadRequest(fmt.Sprintf("invalid payload: %v", err))
	}
	return nil
}

func parseKey(name, raw string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, errBadRequest(fmt.Sprintf("invalid %s %q", name, raw))
	}
	return pk, nil
}

func pathKey(r *http.Request, name string) (solana.PublicKey, error) {
	return parseKey(name, chi.URLParam(r, name))
}

func mintAndUint(r *http.Request, param string) (solana.PublicKey, uint64, error) {
	mint, err := pathKey(r, "mint")
	if err != nil {
		return solana.PublicKey{}, 0, err
	}
	raw := r.URL.Query().Get(param)
	if raw == "" {
		return solana.PublicKey{}, 0, errBadRequest(fmt.Sprintf("missing %s", param))
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return solana.PublicKey{}, 0, errBadRequest(fmt.Sprintf("invalid %s %q", param, raw))
	}
	return mint, v, nil
}

func optionalInt(r *http.Request, param string, def int) (int, error) {
	raw := r.URL.Query().Get(param)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errBadRequest(fmt.Sprintf("invalid %s %q", param, raw))
	}
	return v, nil
}
