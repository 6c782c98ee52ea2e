package api

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/walletd/pkg/billing"
	"github.com/platinummonkey/walletd/pkg/httputil"
	"github.com/platinummonkey/walletd/pkg/observability"
)

// writeError maps a billing error onto an HTTP status and error code.
// Server-side failures are logged and reported without internal detail.
func writeError(w http.ResponseWriter, r *http.Request, fallback logrus.FieldLogger, err error) {
	logger := observability.LoggerFromContext(r.Context(), fallback)

	switch {
	case billing.IsInvalidArgument(err):
		httputil.WriteErrorCode(w, http.StatusBadRequest, httputil.CodeInvalidArgument, err.Error())
	case billing.IsNotFound(err):
		httputil.WriteErrorCode(w, http.StatusNotFound, httputil.CodeNotFound, err.Error())
	case billing.IsInsufficientBalance(err):
		httputil.WriteErrorCode(w, http.StatusPaymentRequired, httputil.CodeInsufficientBalance, err.Error())
	case billing.IsConflict(err):
		httputil.WriteErrorCode(w, http.StatusConflict, httputil.CodeConflict, err.Error())
	case billing.IsInfrastructure(err):
		logger.WithError(err).Error("Dependency unavailable")
		httputil.WriteErrorCode(w, http.StatusServiceUnavailable, httputil.CodeUnavailable, "service temporarily unavailable")
	default:
		logger.WithError(err).Error("Request failed")
		httputil.WriteInternalError(w)
	}
}
