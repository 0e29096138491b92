package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/mkabenga/presencia/core"
	"github.com/mkabenga/presencia/core/academic"
	"github.com/mkabenga/presencia/core/attendance"
	"github.com/mkabenga/presencia/core/calendar"
	"github.com/mkabenga/presencia/core/permit"
	"github.com/mkabenga/presencia/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// statusFor maps domain errors to HTTP status codes. Unmapped errors are
// server errors.
func statusFor(err error) (int, bool) {
	switch err {
	case user.ErrNotFound,
		academic.ErrProgramNotFound, academic.ErrTermNotFound, academic.ErrCourseNotFound,
		academic.ErrOfferingNotFound, academic.ErrStudentNotFound, academic.ErrTeacherNotFound,
		academic.ErrAdminNotFound, academic.ErrAssignmentNotFound,
		calendar.ErrNotFound,
		attendance.ErrSessionNotFound, attendance.ErrRegistrationNotFound, attendance.ErrNoActiveSession,
		permit.ErrNotFound:
		return http.StatusNotFound, true

	case attendance.ErrCredentialMismatch, academic.ErrNotAuthorizedForOffering,
		permit.ErrSelfDecision:
		return http.StatusForbidden, true

	case attendance.ErrDuplicateRegistration, attendance.ErrDuplicateSession,
		academic.ErrAlreadyAssigned, academic.ErrAlreadyEnrolled, academic.ErrProfileExists,
		permit.ErrPermitDecided:
		return http.StatusConflict, true

	case attendance.ErrInvalidCredential:
		return http.StatusBadRequest, true
	}

	// policy rejections carry user-displayable detail
	switch err.(type) {
	case *calendar.BlockedError, *attendance.WrongDayError, *attendance.OutsideWindowError,
		*attendance.GeofenceDeniedError:
		return http.StatusBadRequest, true
	}
	return 0, false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
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
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(core.Translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			if status, ok := statusFor(origErr); ok {
				code = status
				message = origErr.Error()
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.Subject
				usr.Username = claims.Username
				usr.Email = claims.Email
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		} else if m, ok := message.(string); ok {
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
