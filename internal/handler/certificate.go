package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mir00r/giftcert-router/internal/domain"
	"github.com/mir00r/giftcert-router/internal/errors"
	"github.com/mir00r/giftcert-router/internal/service"
	"github.com/mir00r/giftcert-router/internal/validation"
	"github.com/mir00r/giftcert-router/pkg/logger"
)

const maxRequestBody = 1 << 20

// Client-facing messages. Targets and driver errors never reach the client.
const (
	msgNoConnection   = "Available database connection not found"
	msgInternal       = "Internal server error"
	msgCancelled      = "Request cancelled"
	msgInvalidPayload = "Request body must be a JSON array of barcodes"
)

// BalanceLookup answers certificate balance queries
type BalanceLookup interface {
	GetBalances(ctx context.Context, barcodes []string) ([]service.CertificateBalance, error)
}

// CertificateHandler serves the gift certificate lookup API
type CertificateHandler struct {
	lookup BalanceLookup
	logger *logger.Logger
}

// NewCertificateHandler creates a new certificate handler
func NewCertificateHandler(lookup BalanceLookup, log *logger.Logger) *CertificateHandler {
	return &CertificateHandler{
		lookup: lookup,
		logger: log.WithField("component", "certificate_handler"),
	}
}

// GetBalance handles GET /api/giftcert
//
// @Summary      Balance of one certificate
// @Tags         giftcert
// @Produce      json
// @Param        barcode  query     string  true  "Certificate barcode"
// @Success      200      {object}  service.CertificateBalance
// @Failure      400      {object}  ErrorResponse
// @Failure      401      {object}  ErrorResponse
// @Failure      500      {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /api/giftcert [get]
func (h *CertificateHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	barcodes := []string{r.URL.Query().Get("barcode")}

	result, ok := h.lookupBalances(w, r, barcodes)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, result[0])
}

// GetBalances handles POST /api/giftcert
//
// @Summary      Balances of several certificates
// @Tags         giftcert
// @Accept       json
// @Produce      json
// @Param        barcodes  body      []string  true  "Certificate barcodes"
// @Success      200       {array}   service.CertificateBalance
// @Failure      400       {object}  ErrorResponse
// @Failure      401       {object}  ErrorResponse
// @Failure      500       {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /api/giftcert [post]
func (h *CertificateHandler) GetBalances(w http.ResponseWriter, r *http.Request) {
	var barcodes []string
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := decoder.Decode(&barcodes); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidPayload)
		return
	}

	result, ok := h.lookupBalances(w, r, barcodes)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// lookupBalances validates, queries and writes the error response on
// failure. An empty result is reported as invalid certificates.
func (h *CertificateHandler) lookupBalances(w http.ResponseWriter, r *http.Request, barcodes []string) ([]service.CertificateBalance, bool) {
	if err := validation.ValidateBarcodes(barcodes); err != nil {
		writeError(w, http.StatusBadRequest, clientMessage(err))
		return nil, false
	}

	result, err := h.lookup.GetBalances(r.Context(), barcodes)
	if err != nil {
		h.writeLookupError(w, r, err)
		return nil, false
	}
	if len(result) == 0 {
		writeError(w, http.StatusBadRequest, validation.MsgCertsNotValid)
		return nil, false
	}
	return result, true
}

func (h *CertificateHandler) writeLookupError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.GetHTTPStatusCode(err)

	log := h.logger.WithError(err).WithField("status_code", status)
	if rc, ok := domain.RequestContextFrom(r.Context()); ok {
		log = log.WithField("request_id", rc.RequestID)
	}
	log.Warn("Certificate lookup rejected")

	writeError(w, status, clientMessage(err))
}

// clientMessage maps an error to the message returned to API clients
func clientMessage(err error) string {
	switch errors.GetErrorCode(err) {
	case errors.ErrCodeInvalidRequest:
		if routerErr, ok := errors.AsRouterError(err); ok {
			return routerErr.Message
		}
		return msgInternal
	case errors.ErrCodeNoConnection, errors.ErrCodeConfiguration:
		return msgNoConnection
	case errors.ErrCodeCancelled:
		return msgCancelled
	default:
		return msgInternal
	}
}
