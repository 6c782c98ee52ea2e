package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/walletd/pkg/audit"
	"github.com/platinummonkey/walletd/pkg/billing"
	"github.com/platinummonkey/walletd/pkg/contextkeys"
	"github.com/platinummonkey/walletd/pkg/httputil"
	"github.com/platinummonkey/walletd/pkg/orgs"
)

// AdminHandlers serves the super-admin endpoints: organization creation,
// manual wallet adjustments and the audit log.
type AdminHandlers struct {
	billing *billing.Service
	orgs    orgs.Service
	audit   audit.Logger
	logger  logrus.FieldLogger
}

// NewAdminHandlers creates a new AdminHandlers
func NewAdminHandlers(svc *billing.Service, orgService orgs.Service, auditLogger audit.Logger, logger logrus.FieldLogger) *AdminHandlers {
	if auditLogger == nil {
		auditLogger = audit.NoOpLogger{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AdminHandlers{
		billing: svc,
		orgs:    orgService,
		audit:   auditLogger,
		logger:  logger,
	}
}

// RegisterRoutes registers admin routes. The router is expected to be
// gated to super admins already.
func (h *AdminHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/organizations", h.CreateOrganization).Methods("POST")
	router.HandleFunc("/organizations/{org_id}/wallet/credit", h.CreditWallet).Methods("POST")
	router.HandleFunc("/organizations/{org_id}/wallet/debit", h.DebitWallet).Methods("POST")
	router.HandleFunc("/admin/audit-logs", h.SearchAuditLogs).Methods("GET")
}

// CreateOrganization creates an organization together with its wallet
func (h *AdminHandlers) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req orgs.CreateOrgRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	org, wallet, err := h.orgs.CreateOrganization(r.Context(), &req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	event := audit.NewEvent(r.Context(), audit.ActionOrganizationCreate, audit.ResourceTypeOrganization, org.ID)
	event.OrganizationID = org.ID
	event.Message = "organization created"
	event.Changes = &audit.ChangeDetails{
		After: map[string]any{"name": org.Name, "slug": org.Slug, "currency": wallet.Currency},
	}
	recordAudit(r, h.audit, h.logger, event)

	_ = httputil.WriteCreated(w, CreateOrganizationResponse{Organization: org, Wallet: wallet})
}

// CreditWallet adds funds to an organization's wallet
func (h *AdminHandlers) CreditWallet(w http.ResponseWriter, r *http.Request) {
	orgID, req, ok := h.parseAdjustment(w, r)
	if !ok {
		return
	}

	txn, err := h.billing.Credit(r.Context(), billing.CreditRequest{
		OrganizationID: orgID,
		Amount:         req.Amount,
		Description:    req.Reason,
		ActorID:        contextkeys.GetActorID(r.Context()),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.auditAdjustment(r, audit.ActionWalletCredit, txn)
	_ = httputil.WriteCreated(w, txn)
}

// DebitWallet removes funds from an organization's wallet. Without
// allow_negative an insufficient balance answers 402.
func (h *AdminHandlers) DebitWallet(w http.ResponseWriter, r *http.Request) {
	orgID, req, ok := h.parseAdjustment(w, r)
	if !ok {
		return
	}

	txn, err := h.billing.Debit(r.Context(), billing.DebitRequest{
		OrganizationID: orgID,
		Amount:         req.Amount,
		Description:    req.Reason,
		ActorID:        contextkeys.GetActorID(r.Context()),
		AllowNegative:  req.AllowNegative,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.auditAdjustment(r, audit.ActionWalletDebit, txn)
	_ = httputil.WriteCreated(w, txn)
}

func (h *AdminHandlers) parseAdjustment(w http.ResponseWriter, r *http.Request) (string, *WalletAdjustmentRequest, bool) {
	orgID, err := httputil.ParsePathString(r, "org_id")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return "", nil, false
	}

	var req WalletAdjustmentRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return "", nil, false
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, h.logger, err)
		return "", nil, false
	}
	return orgID, &req, true
}

func (h *AdminHandlers) auditAdjustment(r *http.Request, action audit.Action, txn *billing.Transaction) {
	event := audit.NewEvent(r.Context(), action, audit.ResourceTypeWallet, txn.ID)
	event.OrganizationID = txn.OrganizationID
	event.Message = txn.Description
	event.Changes = &audit.ChangeDetails{
		Before: map[string]any{"balance": txn.BalanceBefore},
		After:  map[string]any{"balance": txn.BalanceAfter, "amount": txn.Amount},
	}
	recordAudit(r, h.audit, h.logger, event)
}

// SearchAuditLogs returns audit events, newest first
func (h *AdminHandlers) SearchAuditLogs(w http.ResponseWriter, r *http.Request) {
	filter := audit.SearchFilter{
		OrganizationID: r.URL.Query().Get("organization_id"),
		Action:         audit.Action(r.URL.Query().Get("action")),
	}
	if filter.Action != "" && !filter.Action.Valid() {
		httputil.WriteBadRequest(w, "unknown audit action")
		return
	}

	var err error
	if filter.Limit, err = httputil.ParseQueryInt(r, "limit", audit.DefaultSearchLimit); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if filter.StartTime, err = httputil.ParseQueryTime(r, "start_date", false); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if filter.EndTime, err = httputil.ParseQueryTime(r, "end_date", true); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	events, err := h.audit.Search(r.Context(), filter)
	if err != nil {
		h.logger.WithError(err).Error("Audit log search failed")
		httputil.WriteInternalError(w)
		return
	}
	_ = httputil.WriteSuccess(w, events)
}

// recordAudit logs the event. A failing audit sink never fails the
// mutation it describes, which has already committed.
func recordAudit(r *http.Request, logger audit.Logger, fallback logrus.FieldLogger, event *audit.Event) {
	if err := logger.Log(r.Context(), event); err != nil {
		fallback.WithFields(logrus.Fields{
			"action":      event.Action,
			"resource_id": event.ResourceID,
		}).WithError(err).Error("Failed to record audit event")
	}
}
