package server

import (
	"errors"

	"github.com/bartossh/Federation/federation"
	"github.com/bartossh/Federation/webhooks"
	"github.com/gofiber/fiber/v2"
)

var (
	ErrUnauthorized     = errors.New("request authorization failed")
	ErrMalformedRequest = errors.New("request is malformed")
	ErrInternal         = errors.New("internal server error")
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := ErrInternal.Error()
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		msg = e.Message
	}
	return c.Status(code).JSON(ErrorResponse{Success: false, Error: msg})
}

// apiError converts the error in to fiber error with status code matching the error kind.
func apiError(err error) *fiber.Error {
	code := statusOf(err)
	if code == fiber.StatusInternalServerError {
		if errors.Is(err, federation.ErrJournalWrite) {
			return fiber.NewError(code, federation.ErrJournalWrite.Error())
		}
		return fiber.NewError(code, ErrInternal.Error())
	}
	return fiber.NewError(code, err.Error())
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, federation.ErrNotFederator),
		errors.Is(err, federation.ErrNotOwner):
		return fiber.StatusForbidden
	case errors.Is(err, federation.ErrNotProposed),
		errors.Is(err, federation.ErrUnknownMember),
		errors.Is(err, federation.ErrSignatureIndexOutOfRange),
		errors.Is(err, webhooks.ErrorHookNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, federation.ErrAlreadyProposed),
		errors.Is(err, federation.ErrAlreadySigned),
		errors.Is(err, federation.ErrAlreadySent),
		errors.Is(err, federation.ErrAlreadyMember),
		errors.Is(err, federation.ErrLastMemberRemoval):
		return fiber.StatusConflict
	case errors.Is(err, ErrMalformedRequest),
		errors.Is(err, federation.ErrInvalidValue),
		errors.Is(err, federation.ErrInvalidIdentity),
		errors.Is(err, federation.ErrEmptyMembers),
		errors.Is(err, federation.ErrUnknownEvent),
		errors.Is(err, webhooks.ErrorHookNotImplemented),
		errors.Is(err, webhooks.ErrorHookURLInvalid):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
