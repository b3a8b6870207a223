package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/platform/remote"
	"github.com/phrazzld/taskboard-api/internal/service"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types or messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Validation errors
	case errors.Is(err, domain.ErrUnknownProvider),
		errors.Is(err, domain.ErrEmptyTaskID),
		errors.Is(err, domain.ErrEmptyUserUPN),
		errors.Is(err, service.ErrEmptyPatch):
		return http.StatusBadRequest

	// Upstream failures
	case errors.Is(err, service.ErrAllProvidersFailed),
		errors.Is(err, service.ErrOverlayListingFailed),
		errors.Is(err, remote.ErrPaginationLimit):
		return http.StatusBadGateway

	default:
		var remoteErr *remote.Error
		if errors.As(err, &remoteErr) {
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns the sanitized client-facing message for err.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, domain.ErrUnknownProvider):
		return "Unknown task provider"
	case errors.Is(err, domain.ErrEmptyTaskID):
		return "Task ID cannot be empty"
	case errors.Is(err, domain.ErrEmptyUserUPN):
		return "User principal name cannot be empty"
	case errors.Is(err, service.ErrEmptyPatch):
		return "Overlay patch contains no writable fields"
	case errors.Is(err, service.ErrAllProvidersFailed):
		return "All task providers are currently unavailable"
	case errors.Is(err, service.ErrOverlayListingFailed):
		return "Overlay store is currently unavailable"
	case errors.Is(err, remote.ErrPaginationLimit):
		return "Upstream listing did not terminate"
	default:
		var remoteErr *remote.Error
		if errors.As(err, &remoteErr) {
			return "Upstream service request failed"
		}
		return "An unexpected error occurred"
	}
}
