package handlers

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"vehicle-rental-platform/authcore/internal/emailverify"
	"vehicle-rental-platform/authcore/internal/identity/service"
	"vehicle-rental-platform/authcore/internal/otp"
	"vehicle-rental-platform/authcore/internal/session"
	"vehicle-rental-platform/authcore/internal/validation"
)

// statusFromError maps service sentinel errors to gRPC status codes. Anything
// unmapped is an Internal error with a generic message so repository details
// never reach clients.
func statusFromError(err error) error {
	switch {
	case err == nil:
		return nil

	case errors.Is(err, validation.ErrInvalidEmail),
		errors.Is(err, validation.ErrWeakPassword),
		errors.Is(err, validation.ErrInvalidRole),
		errors.Is(err, validation.ErrInvalidPhone),
		errors.Is(err, otp.ErrCodeMalformed):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, service.ErrEmailAlreadyRegistered):
		return status.Error(codes.AlreadyExists, err.Error())

	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidRefreshToken),
		errors.Is(err, otp.ErrCodeIncorrect),
		errors.Is(err, otp.ErrNoActiveCode),
		errors.Is(err, otp.ErrCodeExpired):
		return status.Error(codes.Unauthenticated, err.Error())

	case errors.Is(err, service.ErrEmailNotVerified),
		errors.Is(err, emailverify.ErrAlreadyVerified),
		errors.Is(err, emailverify.ErrNoChallenge):
		return status.Error(codes.FailedPrecondition, err.Error())

	case errors.Is(err, emailverify.ErrTokenUnknown),
		errors.Is(err, emailverify.ErrTokenExpired):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, otp.ErrUserBlocked),
		errors.Is(err, otp.ErrCodeBlocked),
		errors.Is(err, otp.ErrResendCooldown),
		errors.Is(err, emailverify.ErrResendCooldown),
		errors.Is(err, emailverify.ErrTooManySends):
		return status.Error(codes.ResourceExhausted, err.Error())

	case errors.Is(err, session.ErrSessionNotFound):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, session.ErrNotSessionOwner):
		return status.Error(codes.PermissionDenied, err.Error())

	default:
		return status.Error(codes.Internal, "internal error")
	}
}
