package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"certdispatch/internal/domain"
)

// httpError maps domain errors onto HTTP status codes.
func httpError(err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe
	}
	code := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrSchema), errors.Is(err, domain.ErrInvalidRecipient):
		code = fiber.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		code = fiber.StatusNotFound
	case errors.Is(err, domain.ErrDelivery):
		code = fiber.StatusBadGateway
	}
	return fiber.NewError(code, err.Error())
}
