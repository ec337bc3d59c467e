package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/accessone/backend/internal/middleware"
	"github.com/accessone/backend/internal/services"
)

type BeneficiaryHandler struct {
	service   *services.BeneficiaryService
	validator *services.ValidationHelper
}

func NewBeneficiaryHandler(service *services.BeneficiaryService) *BeneficiaryHandler {
	return &BeneficiaryHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// Add registers a payee for the customer
// @Summary Add beneficiary
// @Tags Beneficiaries
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.AddBeneficiaryInput true "Beneficiary details"
// @Success 201 {object} object{success=bool,beneficiary=models.Beneficiary}
// @Failure 409 {object} services.ErrorResponse
// @Router /beneficiaries [post]
func (h *BeneficiaryHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req services.AddBeneficiaryInput

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

	beneficiary, err := h.service.Add(r.Context(), userID, req)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"success":     true,
		"beneficiary": beneficiary,
	})
}

// List returns all payees visible to the customer
// @Summary List beneficiaries
// @Tags Beneficiaries
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{success=bool,beneficiaries=[]models.Beneficiary}
// @Router /beneficiaries [get]
func (h *BeneficiaryHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	beneficiaries, err := h.service.ListVisibleTo(r.Context(), userID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":       true,
		"beneficiaries": beneficiaries,
	})
}
