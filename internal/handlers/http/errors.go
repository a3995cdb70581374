package http

import (
	stderrors "errors"
	"net/http"

	"tempvoice/internal/core/domain"
	"tempvoice/internal/core/services"
	"tempvoice/pkg/errors"
)

// resultError converts a failed service result into an AppError. It
// returns nil for ok and ignored results.
func resultError(res services.Result) *errors.AppError {
	msg := res.Kind.String()
	if res.Err != nil {
		msg = res.Err.Error()
	}

	switch res.Kind {
	case services.ResultOK, services.ResultIgnored:
		return nil
	case services.ResultConfigMissing:
		return errors.NewConfigMissingError(msg)
	case services.ResultCooldownDenied:
		return errors.NewCooldownError(res.RetryAt)
	case services.ResultConflict:
		return errors.NewConflictError(msg)
	case services.ResultNotFound:
		return errors.NewAppError(errors.ErrCodeNotFound, msg, http.StatusNotFound)
	case services.ResultForbidden:
		return errors.NewForbiddenError(msg)
	case services.ResultInvalidInput:
		return errors.NewInvalidInputError(msg)
	case services.ResultPlatformFailure:
		if stderrors.Is(res.Err, domain.ErrBridgeUnavailable) {
			return errors.NewServiceUnavailableError(msg)
		}
		return errors.NewBadGatewayError(res.Err)
	default:
		return errors.NewInternalError(msg)
	}
}
