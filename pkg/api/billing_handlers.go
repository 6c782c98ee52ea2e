package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/walletd/pkg/audit"
	"github.com/platinummonkey/walletd/pkg/billing"
	"github.com/platinummonkey/walletd/pkg/contextkeys"
	"github.com/platinummonkey/walletd/pkg/httputil"
	"github.com/platinummonkey/walletd/pkg/middleware"
)

// BillingHandlers serves the wallet, rate and meeting billing endpoints.
type BillingHandlers struct {
	billing *billing.Service
	audit   audit.Logger
	logger  logrus.FieldLogger
}

// NewBillingHandlers creates a new BillingHandlers
func NewBillingHandlers(svc *billing.Service, auditLogger audit.Logger, logger logrus.FieldLogger) *BillingHandlers {
	if auditLogger == nil {
		auditLogger = audit.NoOpLogger{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &BillingHandlers{
		billing: svc,
		audit:   auditLogger,
		logger:  logger,
	}
}

// RegisterRoutes registers billing routes
func (h *BillingHandlers) RegisterRoutes(router *mux.Router) {
	superAdmin := middleware.RequireRole(middleware.RoleSuperAdmin)

	// Wallet
	router.HandleFunc("/billing/organizations/{org_id}/wallet", h.GetWallet).Methods("GET")
	router.HandleFunc("/billing/organizations/{org_id}/wallet/transactions", h.ListTransactions).Methods("GET")

	// Rate
	router.HandleFunc("/billing/rate", h.GetRate).Methods("GET")
	router.Handle("/billing/rate", superAdmin(http.HandlerFunc(h.SetRate))).Methods("PUT")

	// Meetings
	router.HandleFunc("/billing/calculate", h.CalculateCost).Methods("POST")
	router.HandleFunc("/billing/meetings/process-billing", h.ProcessMeetingBilling).Methods("POST")
	router.HandleFunc("/billing/organizations/{org_id}/can-start-meeting", h.CanStartMeeting).Methods("GET")
	router.HandleFunc("/billing/organizations/{org_id}/billing-calculations", h.ListCalculations).Methods("GET")

	// Low-balance warnings
	router.HandleFunc("/billing/organizations/{org_id}/low-balance-warnings", h.ListWarnings).Methods("GET")
	router.HandleFunc("/billing/low-balance-warnings/{warning_id}/email-sent", h.MarkWarningEmailSent).Methods("POST")
}

// GetWallet returns an organization's wallet
func (h *BillingHandlers) GetWallet(w http.ResponseWriter, r *http.Request) {
	orgID, err := httputil.ParsePathString(r, "org_id")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	wallet, err := h.billing.GetWallet(r.Context(), orgID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	_ = httputil.WriteSuccess(w, wallet)
}

// ListTransactions returns a page of wallet transactions, newest first
func (h *BillingHandlers) ListTransactions(w http.ResponseWriter, r *http.Request) {
	orgID, err := httputil.ParsePathString(r, "org_id")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	filter, err := parseTransactionFilter(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	page, err := h.billing.ListTransactions(r.Context(), orgID, filter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	_ = httputil.WriteSuccess(w, page)
}

func parseTransactionFilter(r *http.Request) (billing.TransactionFilter, error) {
	var filter billing.TransactionFilter
	var err error

	if filter.Page, err = httputil.ParseQueryInt(r, "page", 1); err != nil {
		return filter, err
	}
	if filter.Limit, err = httputil.ParseQueryInt(r, "limit", billing.DefaultPageLimit); err != nil {
		return filter, err
	}
	filter.Type = billing.TransactionType(strings.ToUpper(r.URL.Query().Get("type")))
	if filter.StartDate, err = httputil.ParseQueryTime(r, "start_date", false); err != nil {
		return filter, err
	}
	if filter.EndDate, err = httputil.ParseQueryTime(r, "end_date", true); err != nil {
		return filter, err
	}
	return filter, nil
}

// RateResponse carries the billing rate in cents per hour.
type RateResponse struct {
	RatePerHour int64 `json:"rate_per_hour"`
}

// GetRate returns the current billing rate
func (h *BillingHandlers) GetRate(w http.ResponseWriter, r *http.Request) {
	rate, err := h.billing.GetRate(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	_ = httputil.WriteSuccess(w, RateResponse{RatePerHour: rate})
}

// SetRate replaces the billing rate. Super admin only.
func (h *BillingHandlers) SetRate(w http.ResponseWriter, r *http.Request) {
	var req SetRateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	// A stored value that no longer parses must still be replaceable.
	previous, err := h.billing.GetRate(r.Context())
	if err != nil && !errors.Is(err, billing.ErrInvalidRate) {
		writeError(w, r, h.logger, err)
		return
	}

	actorID := contextkeys.GetActorID(r.Context())
	if err := h.billing.SetRate(r.Context(), *req.RatePerHour, actorID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	event := audit.NewEvent(r.Context(), audit.ActionConfigUpdate, audit.ResourceTypeConfig, billing.RateConfigKey)
	event.Message = "billing rate updated"
	event.Changes = &audit.ChangeDetails{
		Before: map[string]any{"rate_per_hour": previous},
		After:  map[string]any{"rate_per_hour": *req.RatePerHour},
	}
	recordAudit(r, h.audit, h.logger, event)

	_ = httputil.WriteSuccess(w, RateResponse{RatePerHour: *req.RatePerHour})
}

// CalculateCost prices a usage duration against an organization's wallet
func (h *BillingHandlers) CalculateCost(w http.ResponseWriter, r *http.Request) {
	var req CalculateCostRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	estimate, err := h.billing.CalculateCost(r.Context(), req.OrganizationID, *req.DurationSeconds)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	_ = httputil.WriteSuccess(w, estimate)
}

// ProcessMeetingBilling charges a finished meeting. BLOCKED and FAILED are
// business outcomes and are returned with 200 like CHARGED.
func (h *BillingHandlers) ProcessMeetingBilling(w http.ResponseWriter, r *http.Request) {
	var req billing.MeetingBillingRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.OverrideBalanceCheck && !middleware.IsSuperAdmin(r.Context()) {
		httputil.WriteForbidden(w, "override_balance_check requires the super_admin role")
		return
	}

	result, err := h.billing.ProcessMeetingBilling(r.Context(), req, contextkeys.GetActorID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	_ = httputil.WriteSuccess(w, result)
}

// CanStartMeetingResponse is the admission verdict for a new meeting.
type CanStartMeetingResponse struct {
	OrganizationID   string `json:"organization_id"`
	EstimatedMinutes int64  `json:"estimated_minutes"`
	CanStart         bool   `json:"can_start"`
}

// CanStartMeeting checks whether the wallet covers an estimated meeting
func (h *BillingHandlers) CanStartMeeting(w http.ResponseWriter, r *http.Request) {
	orgID, err := httputil.ParsePathString(r, "org_id")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	minutes, err := httputil.ParseQueryInt64(r, "estimated_minutes", billing.DefaultEstimatedMinutes)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	ok, err := h.billing.CanStartMeeting(r.Context(), orgID, minutes)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	_ = httputil.WriteSuccess(w, CanStartMeetingResponse{
		OrganizationID:   orgID,
		EstimatedMinutes: minutes,
		CanStart:         ok,
	})
}

// ListCalculations returns recorded billing calculations
func (h *BillingHandlers) ListCalculations(w http.ResponseWriter, r *http.Request) {
	orgID, err := httputil.ParsePathString(r, "org_id")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	limit, err := httputil.ParseQueryInt(r, "limit", billing.DefaultPageLimit)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	calcs, err := h.billing.ListCalculations(r.Context(), orgID, limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	_ = httputil.WriteSuccess(w, calcs)
}

// ListWarnings returns low-balance warnings, newest first
func (h *BillingHandlers) ListWarnings(w http.ResponseWriter, r *http.Request) {
	orgID, err := httputil.ParsePathString(r, "org_id")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	limit, err := httputil.ParseQueryInt(r, "limit", billing.DefaultPageLimit)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	warnings, err := h.billing.ListWarnings(r.Context(), orgID, limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	_ = httputil.WriteSuccess(w, warnings)
}

// MarkWarningEmailSent records that the notifier emailed a warning
func (h *BillingHandlers) MarkWarningEmailSent(w http.ResponseWriter, r *http.Request) {
	warningID, err := httputil.ParsePathString(r, "warning_id")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	warning, err := h.billing.MarkWarningEmailSent(r.Context(), warningID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	_ = httputil.WriteSuccess(w, warning)
}
