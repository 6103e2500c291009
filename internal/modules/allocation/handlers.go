package allocation

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler serves the allocation engine's HTTP boundary: a single allocate
// operation, plus the supplemented history lookup and dev-mode mock data
// routes.
type Handler struct {
	history *HistoryRepository
	devMode bool
	log     zerolog.Logger
}

// NewHandler creates a new allocation handler. history may be nil, in
// which case allocations are not persisted.
func NewHandler(history *HistoryRepository, devMode bool, log zerolog.Logger) *Handler {
	return &Handler{
		history: history,
		devMode: devMode,
		log:     log.With().Str("handler", "allocation").Logger(),
	}
}

// HealthCheck reports whether the handler's backing history store is
// reachable. A nil history store (persistence disabled) is always healthy.
func (h *Handler) HealthCheck(ctx context.Context) error {
	if h.history == nil {
		return nil
	}
	return h.history.HealthCheck(ctx)
}

// orderRequest mirrors §6's order schema.
type orderRequest struct {
	SecurityID     string  `json:"security_id"`
	Side           string  `json:"side"`
	Quantity       float64 `json:"quantity"`
	SettlementDate *string `json:"settlement_date,omitempty"`
	Price          float64 `json:"price,omitempty"`
}

type accountRequest struct {
	AccountID            string  `json:"account_id"`
	AccountName          string  `json:"account_name"`
	NAV                  float64 `json:"nav"`
	AvailableCash        float64 `json:"available_cash"`
	CurrentPosition      float64 `json:"current_position"`
	ActiveSpreadDuration float64 `json:"active_spread_duration"`
	PortfolioDuration    float64 `json:"portfolio_duration"`
	SpreadDuration       float64 `json:"spread_duration"`
	OAS                  float64 `json:"oas"`
	CustomMetric         float64 `json:"custom_metric,omitempty"`
}

type securityRequest struct {
	CUSIP           string  `json:"cusip"`
	Price           float64 `json:"price"`
	Duration        float64 `json:"duration"`
	SpreadDuration  float64 `json:"spread_duration"`
	OAS             float64 `json:"oas"`
	MinDenomination float64 `json:"min_denomination"`
}

type constraintsRequest struct {
	RespectCash         bool    `json:"respect_cash"`
	MinAllocation       float64 `json:"min_allocation"`
	RoundToDenomination bool    `json:"round_to_denomination"`
	ComplianceCheck     bool    `json:"compliance_check"`
	MaxConcentration    float64 `json:"max_concentration,omitempty"`
}

type policyRequest struct {
	Kind          string             `json:"kind"`
	BaseMetric    string             `json:"base_metric,omitempty"`
	Weights       map[string]float64 `json:"weights,omitempty"`
	TargetMetric  string             `json:"target_metric,omitempty"`
	Tolerance     float64            `json:"tolerance,omitempty"`
	MaxIterations int                `json:"max_iterations,omitempty"`
}

type allocateRequest struct {
	Order       orderRequest       `json:"order"`
	Security    securityRequest    `json:"security"`
	Accounts    []accountRequest   `json:"accounts"`
	Policy      policyRequest      `json:"policy"`
	Constraints constraintsRequest `json:"constraints"`
}

// HandleAllocate runs the allocation engine against a request payload and
// returns the §6 result encoding.
func (h *Handler) HandleAllocate(w http.ResponseWriter, r *http.Request) {
	var req allocateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order := toOrder(req.Order)
	sec := toSecurity(req.Security)
	accounts := make([]Account, len(req.Accounts))
	for i, a := range req.Accounts {
		accounts[i] = toAccount(a)
	}
	policy := toPolicy(req.Policy)
	constraints := toConstraints(req.Constraints)

	result := Allocate(order, sec, accounts, policy, constraints)

	if h.history != nil && len(result.Errors) == 0 {
		if err := h.history.Record(result, policy.Kind); err != nil {
			h.log.Error().Err(err).Str("id", result.ID).Msg("failed to record allocation result")
		}
	}

	h.writeJSON(w, http.StatusOK, toResultResponse(result))
}

// HandleGetHistoryByID returns a previously recorded allocation result by
// ID.
func (h *Handler) HandleGetHistoryByID(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeError(w, http.StatusNotImplemented, "history store is not configured")
		return
	}

	id := chi.URLParam(r, "id")
	result, err := h.history.Get(id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if result == nil {
		h.writeError(w, http.StatusNotFound, "allocation result not found")
		return
	}

	h.writeJSON(w, http.StatusOK, toResultResponse(*result))
}

// HandleListHistoryBySecurity returns recorded allocation results for a
// security, most recent first.
func (h *Handler) HandleListHistoryBySecurity(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeError(w, http.StatusNotImplemented, "history store is not configured")
		return
	}

	securityID := r.URL.Query().Get("security_id")
	if securityID == "" {
		h.writeError(w, http.StatusBadRequest, "security_id is required")
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	results, err := h.history.ListBySecurity(securityID, limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	responses := make([]allocationResultResponse, len(results))
	for i, result := range results {
		responses[i] = toResultResponse(result)
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"results": responses})
}

// HandleGetMock serves deterministic sample accounts and a security for
// local development and exploratory testing. The route is always mounted;
// when devMode is not set it responds 404.
func (h *Handler) HandleGetMock(w http.ResponseWriter, r *http.Request) {
	if !h.devMode {
		h.writeError(w, http.StatusNotFound, "not found")
		return
	}

	cfg := DefaultMockDataConfig()
	if raw := r.URL.Query().Get("seed"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
			cfg.Seed = parsed
		}
	}
	if raw := r.URL.Query().Get("accounts"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			cfg.AccountCount = parsed
		}
	}

	accounts := GenerateMockAccounts(cfg)
	security := GenerateMockSecurity(cfg)

	accountResponses := make([]accountRequest, len(accounts))
	for i, a := range accounts {
		accountResponses[i] = fromAccount(a)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accountResponses,
		"security": fromSecurity(security),
	})
}

func toOrder(req orderRequest) Order {
	order := Order{
		SecurityID: req.SecurityID,
		Side:       Side(req.Side),
		Quantity:   req.Quantity,
		Price:      req.Price,
	}
	if req.SettlementDate != nil {
		if t, err := time.Parse("2006-01-02", *req.SettlementDate); err == nil {
			order.SettlementDate = t
		}
	}
	return order
}

func toSecurity(req securityRequest) Security {
	return Security{
		CUSIP:           req.CUSIP,
		Price:           req.Price,
		Duration:        req.Duration,
		SpreadDuration:  req.SpreadDuration,
		OAS:             req.OAS,
		MinDenomination: req.MinDenomination,
	}
}

func toAccount(req accountRequest) Account {
	return Account{
		AccountID:            req.AccountID,
		AccountName:          req.AccountName,
		NAV:                  req.NAV,
		AvailableCash:        req.AvailableCash,
		CurrentPosition:      req.CurrentPosition,
		ActiveSpreadDuration: req.ActiveSpreadDuration,
		PortfolioDuration:    req.PortfolioDuration,
		SpreadDuration:       req.SpreadDuration,
		OAS:                  req.OAS,
		CustomMetric:         req.CustomMetric,
	}
}

func fromAccount(a Account) accountRequest {
	return accountRequest{
		AccountID:            a.AccountID,
		AccountName:          a.AccountName,
		NAV:                  a.NAV,
		AvailableCash:        a.AvailableCash,
		CurrentPosition:      a.CurrentPosition,
		ActiveSpreadDuration: a.ActiveSpreadDuration,
		PortfolioDuration:    a.PortfolioDuration,
		SpreadDuration:       a.SpreadDuration,
		OAS:                  a.OAS,
		CustomMetric:         a.CustomMetric,
	}
}

func fromSecurity(s Security) securityRequest {
	return securityRequest{
		CUSIP:           s.CUSIP,
		Price:           s.Price,
		Duration:        s.Duration,
		SpreadDuration:  s.SpreadDuration,
		OAS:             s.OAS,
		MinDenomination: s.MinDenomination,
	}
}

func toConstraints(req constraintsRequest) Constraints {
	return Constraints{
		RespectCash:         req.RespectCash,
		MinAllocation:       req.MinAllocation,
		RoundToDenomination: req.RoundToDenomination,
		ComplianceCheck:     req.ComplianceCheck,
		MaxConcentration:    req.MaxConcentration,
	}
}

func toPolicy(req policyRequest) Policy {
	switch PolicyKind(req.Kind) {
	case PolicyCustomWeights:
		return Policy{Kind: PolicyCustomWeights, CustomWeights: CustomWeightsParams{Weights: req.Weights}}
	case PolicyMinDispersion:
		params := MinDispersionParams{
			TargetMetric:  TargetMetric(req.TargetMetric),
			Tolerance:     req.Tolerance,
			MaxIterations: req.MaxIterations,
		}
		if params.TargetMetric == "" && params.Tolerance == 0 && params.MaxIterations == 0 {
			params = DefaultMinDispersionParams()
		}
		return Policy{Kind: PolicyMinDispersion, MinDispersion: params}
	default:
		return Policy{Kind: PolicyProRata, ProRata: ProRataParams{BaseMetric: BaseMetric(req.BaseMetric)}}
	}
}

type metricsResponse struct {
	ActiveSpreadDuration float64 `json:"active_spread_duration"`
	Duration             float64 `json:"duration"`
	OAS                  float64 `json:"oas"`
}

func toMetricsResponse(m Metrics) metricsResponse {
	return metricsResponse{ActiveSpreadDuration: m.ActiveSpreadDuration, Duration: m.Duration, OAS: m.OAS}
}

type allocationEntryResponse struct {
	AccountID         string          `json:"account_id"`
	AccountName       string          `json:"account_name"`
	AllocatedQuantity float64         `json:"allocated_quantity"`
	AllocatedNotional float64         `json:"allocated_notional"`
	AvailableCash     float64         `json:"available_cash"`
	PostTradeCash     float64         `json:"post_trade_cash"`
	PreTradeMetrics   metricsResponse `json:"pre_trade_metrics"`
	PostTradeMetrics  metricsResponse `json:"post_trade_metrics"`
}

type warningResponse struct {
	Type      string `json:"type"`
	AccountID string `json:"account_id,omitempty"`
	Message   string `json:"message"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type dispersionResponse struct {
	TargetMetric        string  `json:"target_metric"`
	PreTradeStdDev      float64 `json:"pre_trade_std_dev"`
	PostTradeStdDev     float64 `json:"post_trade_std_dev"`
	Improvement         float64 `json:"improvement"`
	MaxDeviation        float64 `json:"max_deviation"`
	MinDeviation        float64 `json:"min_deviation"`
	TargetValue         float64 `json:"target_value"`
	WithinTolerance     bool    `json:"within_tolerance"`
	OptimizationSuccess bool    `json:"optimization_success"`
	Iterations          int     `json:"iterations"`
	FinalObjective      float64 `json:"final_objective"`
}

type summaryResponse struct {
	TotalAllocated        float64             `json:"total_allocated"`
	Unallocated           float64             `json:"unallocated"`
	AllocationRate        float64             `json:"allocation_rate"`
	AllocatedAccountCount int                 `json:"allocated_account_count"`
	SkippedAccountCount   int                 `json:"skipped_account_count"`
	Dispersion            *dispersionResponse `json:"dispersion,omitempty"`
}

type allocationResultResponse struct {
	ID          string                    `json:"id"`
	Timestamp   time.Time                 `json:"timestamp"`
	Allocations []allocationEntryResponse `json:"allocations"`
	Summary     summaryResponse           `json:"summary"`
	Warnings    []warningResponse         `json:"warnings"`
	Errors      []errorResponse           `json:"errors"`
}

func toResultResponse(result AllocationResult) allocationResultResponse {
	allocations := make([]allocationEntryResponse, len(result.Allocations))
	for i, a := range result.Allocations {
		allocations[i] = allocationEntryResponse{
			AccountID:         a.AccountID,
			AccountName:       a.AccountName,
			AllocatedQuantity: a.AllocatedQuantity,
			AllocatedNotional: a.AllocatedNotional,
			AvailableCash:     a.PreTradeCash,
			PostTradeCash:     a.PostTradeCash,
			PreTradeMetrics:   toMetricsResponse(a.PreTradeMetrics),
			PostTradeMetrics:  toMetricsResponse(a.PostTradeMetrics),
		}
	}

	warnings := make([]warningResponse, len(result.Warnings))
	for i, w := range result.Warnings {
		warnings[i] = warningResponse{Type: string(w.Type), AccountID: w.AccountID, Message: w.Message}
	}

	errs := make([]errorResponse, len(result.Errors))
	for i, e := range result.Errors {
		errs[i] = errorResponse{Code: string(e.Code), Message: e.Message, Details: e.Details}
	}

	var dispersion *dispersionResponse
	if result.Summary.Dispersion != nil {
		d := result.Summary.Dispersion
		dispersion = &dispersionResponse{
			TargetMetric:        string(d.TargetMetric),
			PreTradeStdDev:      d.PreTradeStdDev,
			PostTradeStdDev:     d.PostTradeStdDev,
			Improvement:         d.Improvement,
			MaxDeviation:        d.MaxDeviation,
			MinDeviation:        d.MinDeviation,
			TargetValue:         d.TargetValue,
			WithinTolerance:     d.WithinTolerance,
			OptimizationSuccess: d.OptimizationSuccess,
			Iterations:          d.Iterations,
			FinalObjective:      d.FinalObjective,
		}
	}

	return allocationResultResponse{
		ID:          result.ID,
		Timestamp:   result.Timestamp,
		Allocations: allocations,
		Summary: summaryResponse{
			TotalAllocated:        result.Summary.TotalAllocated,
			Unallocated:           result.Summary.Unallocated,
			AllocationRate:        result.Summary.AllocationRate,
			AllocatedAccountCount: result.Summary.AllocatedAccountCount,
			SkippedAccountCount:   result.Summary.SkippedAccountCount,
			Dispersion:            dispersion,
		},
		Warnings: warnings,
		Errors:   errs,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Code: "REQUEST_ERROR", Message: message})
}

// Routes mounts the allocation handler's endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/allocate", h.HandleAllocate)
	r.Get("/history/{id}", h.HandleGetHistoryByID)
	r.Get("/history", h.HandleListHistoryBySecurity)
	r.Get("/mock", h.HandleGetMock)
}
