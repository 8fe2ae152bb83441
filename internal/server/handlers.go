package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/currency-annotator/internal/rates"
	"github.com/jonathan/currency-annotator/internal/schemas"
	"github.com/jonathan/currency-annotator/internal/types"
)

const maxRequestBytes = 64 << 10

// SiteRequest is the body of PUT /sites/{host}.
type SiteRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// SiteResponse describes one host's state.
type SiteResponse struct {
	Host    string `json:"host"`
	Enabled bool   `json:"enabled"`
}

// handleRates answers a rate protocol request. Malformed requests get the
// protocol's invalid-request reply with status 400.
func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		s.jsonResponse(w, http.StatusBadRequest, types.RateResponse{Error: rates.MsgInvalidRequest})
		return
	}
	if err := schemas.ValidateBytes(schemas.RateRequest, body); err != nil {
		s.jsonResponse(w, http.StatusBadRequest, types.RateResponse{Error: rates.MsgInvalidRequest})
		return
	}

	var req types.RateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.jsonResponse(w, http.StatusBadRequest, types.RateResponse{Error: rates.MsgInvalidRequest})
		return
	}
	if err := s.validator.Struct(req); err != nil {
		s.jsonResponse(w, http.StatusBadRequest, types.RateResponse{Error: rates.MsgInvalidRequest})
		return
	}

	resp := s.rates.Handle(r.Context(), req)
	status := http.StatusOK
	if !resp.OK {
		status = http.StatusBadGateway
	}
	s.jsonResponse(w, status, resp)
}

func (s *Server) handleGetOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := s.settings.GetOptions(r.Context())
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, opts)
}

func (s *Server) handlePutOptions(w http.ResponseWriter, r *http.Request) {
	var req types.Options
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Targets) == 0 {
		err := &ErrValidation{Field: "targets", Message: "at least one target is required"}
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	saved, err := s.settings.SetOptions(r.Context(), req)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, saved)
}

func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	states, err := s.settings.SiteStates(r.Context())
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, states)
}

func (s *Server) handleGetSite(w http.ResponseWriter, r *http.Request) {
	host := r.PathValue("host")
	enabled, err := s.settings.GetSiteEnabled(r.Context(), host)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, SiteResponse{Host: host, Enabled: enabled})
}

func (s *Server) handlePutSite(w http.ResponseWriter, r *http.Request) {
	host := r.PathValue("host")

	var req SiteRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := s.validator.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, extractValidationErrors(err))
		return
	}

	if err := s.settings.SetSiteEnabled(r.Context(), host, *req.Enabled); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	enabled, err := s.settings.GetSiteEnabled(r.Context(), host)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, SiteResponse{Host: host, Enabled: enabled})
}

// extractValidationErrors extracts validation error messages from validator errors.
func extractValidationErrors(err error) string {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrors) > 0 {
			// Return first validation error for simplicity
			ve := validationErrors[0]
			return (&ErrValidation{Field: ve.Field(), Message: ve.Tag()}).Error()
		}
	}
	return "validation error: invalid request"
}
