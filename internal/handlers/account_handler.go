package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/accessone/backend/internal/middleware"
	"github.com/accessone/backend/internal/models"
	"github.com/accessone/backend/internal/services"
)

type AccountHandler struct {
	service   *services.AccountService
	qr        *services.QRService
	validator *services.ValidationHelper
}

func NewAccountHandler(service *services.AccountService, qr *services.QRService) *AccountHandler {
	return &AccountHandler{
		service:   service,
		qr:        qr,
		validator: services.NewValidationHelper(),
	}
}

// Create opens an additional account for the customer
// @Summary Open account
// @Tags Accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{account_type=string,initial_deposit=int64} true "Account request"
// @Success 201 {object} object{success=bool,account=models.Account}
// @Failure 400 {object} services.ErrorResponse
// @Router /accounts [post]
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		AccountType    string `json:"account_type" validate:"required,oneof=SAVINGS CURRENT BUSINESS"`
		InitialDeposit int64  `json:"initial_deposit" validate:"gte=0"`
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

	account, err := h.service.CreateAccount(r.Context(), userID, models.AccountType(req.AccountType), req.InitialDeposit)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"account": account,
	})
}

// List returns the customer's accounts
// @Summary List accounts
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{success=bool,accounts=[]models.Account}
// @Router /accounts [get]
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	accounts, err := h.service.FindByUser(r.Context(), userID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":  true,
		"accounts": accounts,
	})
}

// Balance returns the balance of one of the customer's accounts
// @Summary Account balance
// @Tags Accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{account_number=string} true "Balance request"
// @Success 200 {object} object{success=bool,balance=int64}
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/balance [post]
func (h *AccountHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		AccountNumber string `json:"account_number" validate:"required,numeric,len=10"`
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

	account, err := h.service.FindByNumberForUser(r.Context(), userID, models.AccountNumber(req.AccountNumber))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":        true,
		"account_number": account.AccountNumber,
		"balance":        account.Balance,
	})
}

// ReceiveCode generates a short-lived QR receive code for an account
// @Summary Generate receive code
// @Description Generate a QR code another customer can scan to pay into this account
// @Tags Accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{account_number=string,amount=int64} true "Receive code request"
// @Success 200 {object} object{success=bool,token=string,qrImage=string}
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/receive-code [post]
func (h *AccountHandler) ReceiveCode(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		AccountNumber string `json:"account_number" validate:"required,numeric,len=10"`
		Amount        int64  `json:"amount" validate:"required,gt=0"`
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

	// Account must belong to the caller before a receive code is minted.
	account, err := h.service.FindByNumberForUser(r.Context(), userID, models.AccountNumber(req.AccountNumber))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	token, qrImage, err := h.qr.GenerateReceiveCode(r.Context(), account.AccountNumber, req.Amount)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"token":   token,
		"qrImage": qrImage,
	})
}

// ResolveCode resolves a scanned receive code to its payment destination
// @Summary Resolve receive code
// @Description Resolve a scanned QR token to the destination account and amount
// @Tags Accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{token=string} true "Scanned token"
// @Success 200 {object} object{success=bool,data=services.ReceiveCode}
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/resolve-code [post]
func (h *AccountHandler) ResolveCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token" validate:"required"`
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

	code, err := h.qr.ResolveReceiveCode(r.Context(), req.Token)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    code,
	})
}
