package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"agentdesk/internal/model"
	"agentdesk/internal/platform"
	"agentdesk/pkg/apierror"
)

func writeSuccess(w http.ResponseWriter, status int, data any, meta *model.Meta) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "Unexpected server error",
	}

	var apiErr *apierror.APIError
	var platformErr *platform.APIError
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
	} else if errors.Is(err, model.ErrUserNotFound) {
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "Operator not found"
	} else if errors.Is(err, model.ErrInvalidCredentials) {
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Message = "Invalid credentials"
	} else if errors.Is(err, model.ErrUnauthorized) {
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Message = "Authentication required"
	} else if errors.Is(err, model.ErrForbidden) {
		status = http.StatusForbidden
		body.Code = "FORBIDDEN"
		body.Message = "Access denied"
	} else if errors.Is(err, model.ErrUnknownList) {
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "Unknown list"
		body.Details = err.Error()
	} else if errors.Is(err, model.ErrRecordNotFound) {
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "Record not found"
		body.Details = err.Error()
	} else if errors.Is(err, model.ErrNoActiveTicket) {
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "No pending deletion"
	} else if errors.Is(err, model.ErrTicketActive) {
		status = http.StatusConflict
		body.Code = "CONFLICT"
		body.Message = "A deletion is already pending for this list"
	} else if errors.Is(err, model.ErrDeskClosed) {
		status = http.StatusServiceUnavailable
		body.Code = "UNAVAILABLE"
		body.Message = "Desk is shutting down"
	} else if errors.Is(err, model.ErrDeleteFailed) {
		status = http.StatusBadGateway
		body.Code = "DELETE_FAILED"
		body.Message = "Platform refused the deletion; the record was restored"
		if errors.As(err, &platformErr) {
			body.Details = platformErr.Message
		} else {
			body.Details = err.Error()
		}
	} else if errors.As(err, &platformErr) {
		status = http.StatusBadGateway
		body.Code = "PLATFORM_ERROR"
		body.Message = "Platform rejected the request"
		body.Details = platformErr.Message
	} else if errors.Is(err, model.ErrPlatformUnavailable) {
		status = http.StatusBadGateway
		body.Code = "PLATFORM_UNAVAILABLE"
		body.Message = "Platform unavailable"
	} else if errors.Is(err, model.ErrInvalidInput) {
		status = http.StatusBadRequest
		body.Code = "BAD_REQUEST"
		body.Message = "Invalid input"
		body.Details = err.Error()
	} else {
		// Log unclassified errors so they are visible in container logs.
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest)
	}
	return nil
}

func parseIntOrDefault(raw string, fallback int) int {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}
