package handlers

import (
	"errors"
	"net/http"

	"github.com/upb/andon-board/middleware"
	"github.com/upb/andon-board/services"
	"github.com/upb/andon-board/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses. Internal errors
// are logged with the request id and rendered without their cause.
func HandleServiceError(w http.ResponseWriter, r *http.Request, err error, logger *zap.Logger) {
	if err == nil {
		return
	}
	requestID := middleware.GetRequestIDFromContext(r.Context())

	if utils.IsValidationError(err) {
		HandleValidationError(w, err, logger)
		return
	}

	message := publicMessage(err)
	details := services.GetErrorDetails(err)
	if len(details) == 0 {
		details = nil
	}

	var writeErr error
	switch {
	case services.IsNotFoundError(err):
		writeErr = utils.WriteNotFound(w, message)

	case services.IsValidationError(err):
		writeErr = utils.WriteBadRequest(w, message, details)

	case services.IsUnauthorizedError(err):
		writeErr = utils.WriteUnauthorized(w, message)

	case services.IsForbiddenError(err):
		writeErr = utils.WriteForbidden(w, message)

	case services.IsConflictError(err):
		writeErr = utils.WriteConflict(w, message, details)

	case services.IsInternalError(err):
		logger.Error("internal server error",
			zap.String("request_id", requestID),
			zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, requestID)

	default:
		logger.Error("unhandled error type",
			zap.String("request_id", requestID),
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		writeErr = utils.WriteInternalServerError(w, requestID)
	}

	if writeErr != nil {
		logger.Error("failed to write error response",
			zap.String("request_id", requestID),
			zap.Error(writeErr))
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		var validationErr *utils.ValidationError
		errors.As(err, &validationErr)
		details := make(map[string]interface{}, len(validationErr.Fields))
		for k, v := range validationErr.Fields {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, validationErr.Message, details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}

// publicMessage is the client-facing part of a domain error
func publicMessage(err error) string {
	var domainErr *services.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}
