package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/accessone/backend/internal/middleware"
	"github.com/accessone/backend/internal/models"
	"github.com/accessone/backend/internal/services"
)

type TransferHandler struct {
	service      *services.TransferService
	transactions *services.TransactionService
	auth         *services.AuthService
	validator    *services.ValidationHelper
}

func NewTransferHandler(service *services.TransferService, transactions *services.TransactionService, auth *services.AuthService) *TransferHandler {
	return &TransferHandler{
		service:      service,
		transactions: transactions,
		auth:         auth,
		validator:    services.NewValidationHelper(),
	}
}

// Initiate stages a transfer and sends an OTP to the customer
// @Summary Initiate transfer
// @Description Validate the transfer, stage it, and email a one-time passcode
// @Tags Transfers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.InitiateTransferInput true "Transfer details"
// @Success 202 {object} object{success=bool,pending_transfer_id=string}
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /transfers/initiate [post]
func (h *TransferHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req services.InitiateTransferInput

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	user, err := h.auth.UserByID(r.Context(), userID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	pendingID, err := h.service.Initiate(r.Context(), userID, user.Email, req)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"success":             true,
		"pending_transfer_id": pendingID,
		"message":             "Verification code sent",
	})
}

// Verify confirms the OTP and executes the staged transfer
// @Summary Verify transfer
// @Description Verify the passcode and execute the staged transfer atomically
// @Tags Transfers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{pending_transfer_id=string,code=string} true "Verification request"
// @Success 200 {object} services.ExecuteResult
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /transfers/verify [post]
func (h *TransferHandler) Verify(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		PendingTransferID string `json:"pending_transfer_id" validate:"required,uuid4"`
		Code              string `json:"code" validate:"required,len=6,numeric"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	user, err := h.auth.UserByID(r.Context(), userID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	result, err := h.service.VerifyAndExecute(r.Context(), userID, user.Email, models.PendingTransferID(req.PendingTransferID), req.Code)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":   true,
		"reference": result.Reference,
		"status":    result.Status,
		"internal":  result.Internal,
	})
}

// Transactions returns the customer's recent transfer history
// @Summary Transaction history
// @Tags Transfers
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum records to return (default 50, max 100)"
// @Success 200 {object} object{success=bool,transactions=[]models.Transaction}
// @Router /transfers/transactions [get]
func (h *TransferHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			services.SendErrorResponse(w, "Invalid limit parameter", http.StatusBadRequest, nil)
			return
		}
		limit = parsed
	}

	records, err := h.transactions.ListForUser(r.Context(), userID, limit)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":      true,
		"transactions": records,
	})
}
