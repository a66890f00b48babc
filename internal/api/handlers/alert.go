package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pratik-mahalle/assetwatch/internal/api/dto"
	"github.com/pratik-mahalle/assetwatch/internal/api/middleware"
	"github.com/pratik-mahalle/assetwatch/internal/domain/alert"
	"github.com/pratik-mahalle/assetwatch/internal/pkg/errors"
	"github.com/pratik-mahalle/assetwatch/internal/pkg/logger"
	"github.com/pratik-mahalle/assetwatch/internal/pkg/utils"
	"github.com/pratik-mahalle/assetwatch/internal/pkg/validator"
)

type AlertHandler struct {
	service   alert.Service
	logger    *logger.Logger
	validator *validator.Validator
	now       func() time.Time
}

func NewAlertHandler(service alert.Service, log *logger.Logger, val *validator.Validator) *AlertHandler {
	return &AlertHandler{service: service, logger: log, validator: val, now: time.Now}
}

// List returns the current alerts with filtering, pagination and statistics
// @Summary List alerts
// @Description Evaluate the live asset snapshot, merge it with stored alerts and return one page sorted by urgency
// @Tags Alerts
// @Produce json
// @Param type query string false "Filter by alert type"
// @Param priority query string false "Filter by priority" Enums(critical, high, medium, low, info)
// @Param status query string false "Filter by status" Enums(new, acknowledged, in_progress, resolved, dismissed, escalated)
// @Param department query string false "Filter by department (case-insensitive)"
// @Param assignedTo query string false "Filter by assignee"
// @Param dateRange query string false "Restrict by creation time" Enums(today, 7d, 30d, 90d)
// @Param limit query int false "Page size (default: 50, max: 100)"
// @Param offset query int false "Page offset"
// @Success 200 {object} dto.AlertListResponse "Alerts page"
// @Failure 400 {object} utils.ErrorResponse "Invalid query"
// @Failure 401 {object} utils.ErrorResponse "Authentication required"
// @Failure 403 {object} utils.ErrorResponse "Missing reports:view"
// @Security BearerAuth
// @Router /alerts [get]
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params, err := utils.ParseOffsetParams(q, alert.DefaultLimit)
	if err != nil {
		utils.WriteError(w, errors.ValidationError("Invalid pagination", alert.FieldErrors{
			{Field: "pagination", Tag: "numeric", Message: err.Error()},
		}))
		return
	}

	filter := alert.Filter{
		Type:       alert.Type(q.Get("type")),
		Priority:   alert.Priority(q.Get("priority")),
		Status:     alert.Status(q.Get("status")),
		Department: q.Get("department"),
		AssignedTo: q.Get("assignedTo"),
		DateRange:  alert.DateRange(q.Get("dateRange")),
	}

	res, err := h.service.ListAlerts(r.Context(), filter, alert.Page{Limit: params.Limit, Offset: params.Offset})
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to list alerts")
		return
	}

	utils.WriteSuccess(w, http.StatusOK, dto.FromListResult(res))
}

// Get returns a single alert by ID
// @Summary Get alert by ID
// @Description Return a stored alert, or the live one when it has never been stored
// @Tags Alerts
// @Produce json
// @Param id path string true "Alert ID, e.g. maintenance_overdue:asset-1"
// @Success 200 {object} alert.Alert "Alert details"
// @Failure 404 {object} utils.ErrorResponse "Alert not found"
// @Security BearerAuth
// @Router /alerts/{id} [get]
func (h *AlertHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.GetAlert(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to get alert")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, a)
}

// PerformAction applies an operator action to an alert
// @Summary Perform alert action
// @Description Acknowledge, start, assign, resolve, dismiss or escalate an alert
// @Tags Alerts
// @Accept json
// @Produce json
// @Param request body dto.AlertActionRequest true "Action"
// @Success 200 {object} alert.Alert "Updated alert"
// @Failure 400 {object} utils.ErrorResponse "Invalid action or validation error"
// @Failure 404 {object} utils.ErrorResponse "Alert not found"
// @Failure 409 {object} utils.ErrorResponse "Alert already resolved or dismissed"
// @Security BearerAuth
// @Router /alerts [post]
func (h *AlertHandler) PerformAction(w http.ResponseWriter, r *http.Request) {
	var req dto.AlertActionRequest
	if appErr := decodeJSON(r, &req); appErr != nil {
		utils.WriteError(w, appErr)
		return
	}
	if errs := h.validator.Validate(req); len(errs) > 0 {
		utils.WriteError(w, errors.ValidationError("Invalid alert action", errs))
		return
	}

	h.act(w, r, req.ToDomain(actor(r)))
}

// Dismiss dismisses an alert
// @Summary Dismiss alert
// @Description Dismiss an alert with an optional reason
// @Tags Alerts
// @Produce json
// @Param id path string true "Alert ID"
// @Param reason query string false "Dismiss reason"
// @Success 200 {object} alert.Alert "Dismissed alert"
// @Failure 404 {object} utils.ErrorResponse "Alert not found"
// @Failure 409 {object} utils.ErrorResponse "Alert already resolved or dismissed"
// @Security BearerAuth
// @Router /alerts/{id} [delete]
func (h *AlertHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, alert.ActionRequest{
		AlertID: chi.URLParam(r, "id"),
		Action:  string(alert.ActionDismiss),
		Actor:   actor(r),
		Notes:   r.URL.Query().Get("reason"),
	})
}

func (h *AlertHandler) act(w http.ResponseWriter, r *http.Request, req alert.ActionRequest) {
	middleware.AddLogField(w, "alert_id", req.AlertID)
	middleware.AddLogField(w, "action", req.Action)

	a, err := h.service.PerformAction(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to perform alert action")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, a)
}

// GetPreferences returns the caller's notification preferences
// @Summary Get alert preferences
// @Description Return the caller's stored preferences, or the defaults
// @Tags Alerts
// @Produce json
// @Success 200 {object} alert.Preferences "Preferences"
// @Security BearerAuth
// @Router /alerts/preferences [get]
func (h *AlertHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.service.GetPreferences(r.Context(), actor(r))
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to get preferences")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, prefs)
}

// UpdatePreferences replaces the caller's notification preferences
// @Summary Update alert preferences
// @Description Validate and store the caller's channels, filters, quiet hours and escalation rules
// @Tags Alerts
// @Accept json
// @Produce json
// @Param request body dto.PreferencesRequest true "Preferences"
// @Success 200 {object} alert.Preferences "Stored preferences"
// @Failure 400 {object} utils.ErrorResponse "Validation error"
// @Security BearerAuth
// @Router /alerts/preferences [put]
func (h *AlertHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req dto.PreferencesRequest
	if appErr := decodeJSON(r, &req); appErr != nil {
		utils.WriteError(w, appErr)
		return
	}

	recipientID := actor(r)
	prefs, err := h.service.UpdatePreferences(r.Context(), recipientID, req.ToDomain(recipientID))
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to update preferences")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, prefs)
}

// Sweep runs one escalation sweep immediately
// @Summary Run escalation sweep
// @Description Escalate alerts left unaddressed past their rule's timeout
// @Tags Alerts
// @Produce json
// @Success 200 {object} alert.SweepResult "Sweep result"
// @Failure 403 {object} utils.ErrorResponse "Missing assets:manage"
// @Security BearerAuth
// @Router /alerts/escalations/sweep [post]
func (h *AlertHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.SweepEscalations(r.Context(), h.now())
	if err != nil {
		writeServiceError(w, h.logger, err, "Escalation sweep failed")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, res)
}

func actor(r *http.Request) string {
	userID, _ := middleware.GetUserID(r)
	return userID
}
