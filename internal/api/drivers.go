package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/shubhsahu23/VoiceBot/internal/redact"
)

type validateDriverRequest struct {
	DriverID flexibleID `json:"driver_id"`
}

type validatePhoneRequest struct {
	Phone flexibleID `json:"phone"`
}

type validationResponse struct {
	Valid    bool   `json:"valid"`
	DriverID string `json:"driver_id,omitempty"`
	Message  string `json:"message"`
}

// ValidateDriver checks that a driver id exists. Lookup failures are
// reported as not found.
func (h *Handler) ValidateDriver(w http.ResponseWriter, r *http.Request) {
	var req validateDriverRequest
	if !h.decode(w, r, &req) {
		return
	}
	driverID := string(req.DriverID)
	if driverID == "" {
		Error(w, http.StatusBadRequest, "driver_id is required")
		return
	}

	dc, err := h.drivers.FindDriverContext(r.Context(), driverID)
	if err != nil {
		slog.Error("Driver lookup failed", "driver_id", driverID, "error", err)
	}
	if dc == nil {
		JSON(w, http.StatusNotFound, validationResponse{Valid: false, Message: "Driver ID not found."})
		return
	}
	JSON(w, http.StatusOK, validationResponse{Valid: true, DriverID: dc.DriverID, Message: "Driver ID verified."})
}

// ValidatePhone resolves a phone number to its driver id.
func (h *Handler) ValidatePhone(w http.ResponseWriter, r *http.Request) {
	var req validatePhoneRequest
	if !h.decode(w, r, &req) {
		return
	}
	phone := strings.TrimSpace(string(req.Phone))
	if phone == "" {
		Error(w, http.StatusBadRequest, "phone is required")
		return
	}

	dc, err := h.drivers.FindDriverByPhone(r.Context(), phone)
	if err != nil {
		slog.Error("Phone lookup failed", "phone", redact.Phone(phone), "error", err)
	}
	if dc == nil {
		JSON(w, http.StatusNotFound, validationResponse{Valid: false, Message: "Phone number not found."})
		return
	}
	JSON(w, http.StatusOK, validationResponse{Valid: true, DriverID: dc.DriverID, Message: "Phone number linked to driver."})
}
