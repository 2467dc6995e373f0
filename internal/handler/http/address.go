package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cartify/cartify/internal/domain"
	"github.com/cartify/cartify/internal/service"
	apperrors "github.com/cartify/cartify/pkg/errors"
	"github.com/cartify/cartify/pkg/httputil"
	"github.com/cartify/cartify/pkg/middleware"
	"github.com/cartify/cartify/pkg/validator"
)

// AddressHandler serves the /api/v1/addresses routes.
type AddressHandler struct {
	service *service.AddressService
	logger  *slog.Logger
}

// NewAddressHandler creates a new address HTTP handler.
func NewAddressHandler(svc *service.AddressService, logger *slog.Logger) *AddressHandler {
	return &AddressHandler{service: svc, logger: logger}
}

// CreateAddressRequest is the JSON request body for creating an address.
type CreateAddressRequest struct {
	Label             string `json:"label" validate:"max=50"`
	AddressLine1      string `json:"addressLine1" validate:"notblank,max=200"`
	AddressLine2      string `json:"addressLine2" validate:"max=200"`
	Landmark          string `json:"landmark" validate:"max=200"`
	City              string `json:"city" validate:"notblank,max=100"`
	State             string `json:"state" validate:"notblank,max=100"`
	PostalCode        string `json:"postalCode" validate:"notblank,max=20"`
	Tag               string `json:"tag" validate:"max=20"`
	IsDefaultShipping bool   `json:"isDefaultShipping"`
	IsDefaultBilling  bool   `json:"isDefaultBilling"`
	IsCurrentAddress  bool   `json:"isCurrentAddress"`
}

// UpdateAddressRequest is the JSON request body for updating an address.
// Omitted fields are left unchanged.
type UpdateAddressRequest struct {
	Label             *string `json:"label" validate:"omitempty,max=50"`
	AddressLine1      *string `json:"addressLine1" validate:"omitempty,max=200"`
	AddressLine2      *string `json:"addressLine2" validate:"omitempty,max=200"`
	Landmark          *string `json:"landmark" validate:"omitempty,max=200"`
	City              *string `json:"city" validate:"omitempty,max=100"`
	State             *string `json:"state" validate:"omitempty,max=100"`
	PostalCode        *string `json:"postalCode" validate:"omitempty,max=20"`
	Tag               *string `json:"tag" validate:"omitempty,max=20"`
	IsDefaultShipping *bool   `json:"isDefaultShipping"`
	IsDefaultBilling  *bool   `json:"isDefaultBilling"`
	IsCurrentAddress  *bool   `json:"isCurrentAddress"`
}

// SetCurrentResponse reports whether SetCurrentAddress changed anything.
type SetCurrentResponse struct {
	Applied bool            `json:"applied"`
	Address *domain.Address `json:"address,omitempty"`
}

// List handles GET /api/v1/addresses
func (h *AddressHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}

	addresses, err := h.service.ListAddressesForOwner(r.Context(), ownerID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, addresses)
}

// Create handles POST /api/v1/addresses
func (h *AddressHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}

	var req CreateAddressRequest
	if !h.decode(w, r, &req) {
		return
	}

	address, err := h.service.CreateAddress(r.Context(), ownerID, service.CreateAddressInput{
		Label:             req.Label,
		AddressLine1:      req.AddressLine1,
		AddressLine2:      req.AddressLine2,
		Landmark:          req.Landmark,
		City:              req.City,
		State:             req.State,
		PostalCode:        req.PostalCode,
		Tag:               req.Tag,
		IsDefaultShipping: req.IsDefaultShipping,
		IsDefaultBilling:  req.IsDefaultBilling,
		IsCurrentAddress:  req.IsCurrentAddress,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, address)
}

// Get handles GET /api/v1/addresses/{id}
func (h *AddressHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}
	addressID, ok := addressIDParam(w, r)
	if !ok {
		return
	}

	address, err := h.service.GetAddress(r.Context(), ownerID, addressID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, address)
}

// Update handles PUT /api/v1/addresses/{id}
func (h *AddressHandler) Update(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}
	addressID, ok := addressIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateAddressRequest
	if !h.decode(w, r, &req) {
		return
	}

	address, err := h.service.UpdateAddress(r.Context(), addressID, service.UpdateAddressInput{
		OwnerID:           ownerID,
		Label:             req.Label,
		AddressLine1:      req.AddressLine1,
		AddressLine2:      req.AddressLine2,
		Landmark:          req.Landmark,
		City:              req.City,
		State:             req.State,
		PostalCode:        req.PostalCode,
		Tag:               req.Tag,
		IsDefaultShipping: req.IsDefaultShipping,
		IsDefaultBilling:  req.IsDefaultBilling,
		IsCurrentAddress:  req.IsCurrentAddress,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, address)
}

// Delete handles DELETE /api/v1/addresses/{id}
func (h *AddressHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}
	addressID, ok := addressIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteAddress(r.Context(), ownerID, addressID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, map[string]string{"id": addressID})
}

// SetDefault handles PUT /api/v1/addresses/{id}/default?kind=shipping|billing
func (h *AddressHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}
	addressID, ok := addressIDParam(w, r)
	if !ok {
		return
	}

	kind := domain.DefaultKind(r.URL.Query().Get("kind"))
	address, err := h.service.SetDefaultAddress(r.Context(), ownerID, addressID, kind)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, address)
}

// SetCurrent handles PUT /api/v1/addresses/{id}/current
func (h *AddressHandler) SetCurrent(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}
	addressID, ok := addressIDParam(w, r)
	if !ok {
		return
	}

	address, err := h.service.SetCurrentAddress(r.Context(), ownerID, addressID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, SetCurrentResponse{Applied: address != nil, Address: address})
}

func (h *AddressHandler) ownerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	ownerID := middleware.OwnerIDFromContext(r.Context())
	if ownerID == "" {
		httputil.WriteError(w, r, apperrors.Unauthorized("user not authenticated"), h.logger)
		return "", false
	}
	return ownerID, true
}

// decode reads and validates the body into dst, writing a 400 on failure.
func (h *AddressHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := validator.DecodeAndValidate(r, dst)
	if err == nil {
		return true
	}

	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		httputil.WriteError(w, r, err, h.logger)
	} else {
		httputil.WriteError(w, r, apperrors.InvalidInput("invalid request body: "+err.Error()), h.logger)
	}
	return false
}

func addressIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return "", false
	}
	return id.String(), true
}
