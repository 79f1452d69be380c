package echoapi

import (
	"net/http"
	"net/url"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/changeset"
	"github.com/trezcool/masomo-console/core/dashboard"
	"github.com/trezcool/masomo-console/core/entity"
	exportsvc "github.com/trezcool/masomo-console/services/export"
	"github.com/trezcool/masomo-console/services/upstream"
)

var (
	errUnauthorized  = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden = echo.NewHTTPError(http.StatusForbidden, "permission denied")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			message = core.TranslateErrors(origErr, translator)
		case *core.ValidationError:
			if flds := origErr.FieldMap(); flds != nil {
				message = flds
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		case *upstream.APIError:
			code, message = upstreamErrorResponse(origErr)
		case *url.Error: // the API could not be reached
			code = http.StatusBadGateway
			message = "upstream unavailable"
		default:
			switch origErr {
			case entity.ErrUnknownKind:
				code = http.StatusNotFound
				message = origErr.Error()
			case dashboard.ErrForbidden:
				code = http.StatusForbidden
				message = origErr.Error()
			case exportsvc.ErrUnknownFormat, changeset.ErrNotObject:
				code = http.StatusBadRequest
				message = origErr.Error()
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				op, _ := getContextOperator(ctx)
				logger.Error(msg, errors.Wrap(err, msg), op)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug && code >= http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// upstreamErrorResponse maps an error answered by the ERP API: its validation errors are the client's,
// a missing record is a 404, anything else is a gateway error.
func upstreamErrorResponse(apiErr *upstream.APIError) (int, interface{}) {
	switch {
	case apiErr.Status == http.StatusBadRequest && len(apiErr.FieldErrors) > 0:
		return http.StatusBadRequest, apiErr.FieldErrors
	case apiErr.Status == http.StatusBadRequest:
		return http.StatusBadRequest, apiErr.Message
	case apiErr.Status == http.StatusNotFound:
		return http.StatusNotFound, apiErr.Message
	}
	return http.StatusBadGateway, "upstream error: " + apiErr.Message
}
