package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/joshsymonds/mailsorter/internal/classify"
	"github.com/joshsymonds/mailsorter/internal/config"
	"github.com/joshsymonds/mailsorter/internal/credential"
	"github.com/joshsymonds/mailsorter/internal/fetch"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

var errBadRequest = errors.New("bad request")

func statusFor(err error) int {
	var ff *fetch.FetchFailedError
	switch {
	case errors.Is(err, credential.ErrNotAuthenticated), errors.Is(err, credential.ErrCredentialExpired):
		return fiber.StatusUnauthorized
	case errors.Is(err, classify.ErrNoTrainingData), errors.Is(err, config.ErrConfigurationMissing):
		return fiber.StatusServiceUnavailable
	case errors.As(err, &ff):
		return fiber.StatusBadGateway
	case errors.Is(err, errBadRequest), errors.Is(err, credential.ErrInvalidCredential):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
