// Package handlers provides HTTP handlers for the intake API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/carebridge/intake-engine/internal/api/middleware"
	"github.com/carebridge/intake-engine/internal/intake"
	"github.com/carebridge/intake-engine/internal/observability/metrics"
	"github.com/carebridge/intake-engine/internal/screening"
)

// IntakeHandler handles patient and order intake endpoints
type IntakeHandler struct {
	service *intake.Service
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewIntakeHandler creates a new handler. Metrics may be nil in tests.
func NewIntakeHandler(service *intake.Service, m *metrics.Metrics, logger *zap.Logger) *IntakeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntakeHandler{service: service, metrics: m, logger: logger}
}

// Routes returns the handler routes
func (h *IntakeHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/patients/screen", h.ScreenPatient)
	r.Post("/patients", h.RegisterPatient)
	r.Post("/orders", h.PlaceOrder)
	return r
}

// ScreenResponse is the response for a screening-only request
type ScreenResponse struct {
	Warnings []screening.Warning `json:"warnings"`
}

// ScreenPatient handles POST /patients/screen. It runs duplicate detection
// without persisting anything, so callers can preview warnings before submit.
func (h *IntakeHandler) ScreenPatient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("intake-handler")
	ctx, span := tracer.Start(ctx, "screen_patient")
	defer span.End()

	var sub intake.PatientSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	start := time.Now()
	warnings, err := h.service.ScreenPatient(ctx, sub)
	if err != nil {
		h.handleServiceError(w, r, err, nil)
		return
	}
	h.recordScreening(start, warnings)
	span.SetAttributes(attribute.Int("warning_count", len(warnings)))

	h.writeJSON(w, http.StatusOK, ScreenResponse{Warnings: nonNil(warnings)})
}

// RegisterResponse is the response for an accepted patient submission
type RegisterResponse struct {
	Patient  *intake.Patient     `json:"patient"`
	Warnings []screening.Warning `json:"warnings"`
}

// RegisterPatient handles POST /patients. Duplicate warnings block with 409
// unless the submission sets force; similar-patient warnings are advisory.
func (h *IntakeHandler) RegisterPatient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("intake-handler")
	ctx, span := tracer.Start(ctx, "register_patient")
	defer span.End()

	var sub intake.PatientSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	start := time.Now()
	patient, warnings, err := h.service.RegisterPatient(ctx, sub)
	if err != nil {
		h.handleServiceError(w, r, err, warnings)
		return
	}
	h.recordScreening(start, warnings)
	if h.metrics != nil {
		h.metrics.PatientsRegistered.Inc()
		if sub.Force && len(warnings) > 0 {
			h.metrics.SubmissionsForced.Inc()
		}
	}

	span.SetAttributes(
		attribute.String("patient_id", patient.ID),
		attribute.Int("warning_count", len(warnings)),
	)
	h.logger.Info("patient registered",
		zap.String("patient_id", patient.ID),
		zap.String("request_id", middleware.GetRequestID(ctx)))

	h.writeJSON(w, http.StatusCreated, RegisterResponse{
		Patient:  patient,
		Warnings: nonNil(warnings),
	})
}

// OrderResponse is the response for an accepted order submission
type OrderResponse struct {
	Order    *intake.Order       `json:"order"`
	Warnings []screening.Warning `json:"warnings"`
}

// PlaceOrder handles POST /orders
func (h *IntakeHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("intake-handler")
	ctx, span := tracer.Start(ctx, "place_order")
	defer span.End()

	var sub intake.OrderSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	start := time.Now()
	order, warnings, err := h.service.PlaceOrder(ctx, sub)
	if err != nil {
		h.handleServiceError(w, r, err, warnings)
		return
	}
	h.recordScreening(start, warnings)
	if h.metrics != nil {
		h.metrics.OrdersPlaced.Inc()
		if sub.Force && len(warnings) > 0 {
			h.metrics.SubmissionsForced.Inc()
		}
	}

	span.SetAttributes(attribute.String("order_id", order.ID))

	h.writeJSON(w, http.StatusCreated, OrderResponse{
		Order:    order,
		Warnings: nonNil(warnings),
	})
}

// BlockedResponse is returned with 409 when screening blocks a submission
type BlockedResponse struct {
	Error    string              `json:"error"`
	Warnings []screening.Warning `json:"warnings"`
}

// recordScreening updates the screening metrics after a completed service call
func (h *IntakeHandler) recordScreening(start time.Time, warnings []screening.Warning) {
	if h.metrics == nil {
		return
	}
	h.metrics.ScreeningsRun.Inc()
	h.metrics.ScreeningDuration.Observe(time.Since(start).Seconds())
	for _, warning := range warnings {
		h.metrics.DuplicateWarnings.WithLabelValues(string(warning.Type)).Inc()
	}
}

func (h *IntakeHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error, warnings []screening.Warning) {
	if errors.Is(err, intake.ErrBlocked) {
		if h.metrics != nil {
			h.metrics.SubmissionsBlocked.Inc()
			for _, warning := range warnings {
				h.metrics.DuplicateWarnings.WithLabelValues(string(warning.Type)).Inc()
			}
		}
		h.logger.Info("submission blocked",
			zap.Int("warnings", len(warnings)),
			zap.String("request_id", middleware.GetRequestID(r.Context())))
		h.writeJSON(w, http.StatusConflict, BlockedResponse{
			Error:    err.Error(),
			Warnings: nonNil(warnings),
		})
		return
	}
	if isValidationError(err) {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.logger.Error("intake request failed",
		zap.Error(err),
		zap.String("request_id", middleware.GetRequestID(r.Context())))
	h.jsonError(w, "internal server error", http.StatusInternalServerError)
}

// isValidationError distinguishes bad input from downstream failures.
// Validation errors are plain errors created in the service with no
// wrapped cause.
func isValidationError(err error) bool {
	return errors.Unwrap(err) == nil && !errors.Is(err, intake.ErrBlocked)
}

func (h *IntakeHandler) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (h *IntakeHandler) jsonError(w http.ResponseWriter, message string, code int) {
	h.writeJSON(w, code, map[string]string{"error": message})
}

// nonNil keeps empty warning lists as [] in JSON instead of null
func nonNil(warnings []screening.Warning) []screening.Warning {
	if warnings == nil {
		return []screening.Warning{}
	}
	return warnings
}
