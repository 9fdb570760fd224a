package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/attendance"
	"github.com/trezcool/campus/core/calendar"
	"github.com/trezcool/campus/core/class"
	"github.com/trezcool/campus/core/course"
	"github.com/trezcool/campus/core/finance"
	"github.com/trezcool/campus/core/grade"
	"github.com/trezcool/campus/core/marketing"
	"github.com/trezcool/campus/core/progress"
	"github.com/trezcool/campus/core/request"
	"github.com/trezcool/campus/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
	errTooManyRequests      = echo.NewHTTPError(http.StatusTooManyRequests, "too many requests, try again later")
)

// errStatuses maps the domain sentinel errors to their HTTP status.
var errStatuses = map[error]int{
	core.ErrPermissionDenied: http.StatusForbidden,
	core.ErrConflict:         http.StatusConflict,

	user.ErrNotFound:        http.StatusNotFound,
	user.ErrProfileNotFound: http.StatusNotFound,
	user.ErrEmailExists:     http.StatusConflict,
	user.ErrInvalidUID:      http.StatusBadRequest,
	user.ErrInvalidToken:    http.StatusBadRequest,
	user.ErrTokenExpired:    http.StatusBadRequest,

	course.ErrNotFound:       http.StatusNotFound,
	course.ErrModuleNotFound: http.StatusNotFound,
	course.ErrLessonNotFound: http.StatusNotFound,
	course.ErrNotEditable:    http.StatusConflict,
	course.ErrInvalidStatus:  http.StatusConflict,
	course.ErrEmptyCourse:    http.StatusBadRequest,

	class.ErrNotFound:            http.StatusNotFound,
	class.ErrEnrollmentNotFound:  http.StatusNotFound,
	class.ErrAlreadyEnrolled:     http.StatusConflict,
	class.ErrClassFull:           http.StatusConflict,
	class.ErrClassClosed:         http.StatusBadRequest,
	class.ErrCourseNotApproved:   http.StatusBadRequest,
	class.ErrInvalidTransition:   http.StatusConflict,
	class.ErrNotEnrolled:         http.StatusForbidden,
	class.ErrEnrollmentNotActive: http.StatusForbidden,

	progress.ErrCertificateNotFound: http.StatusNotFound,
	progress.ErrCertificateExists:   http.StatusConflict,

	calendar.ErrRoomNotFound:    http.StatusNotFound,
	calendar.ErrEventNotFound:   http.StatusNotFound,
	calendar.ErrRoomNameExists:  http.StatusConflict,
	calendar.ErrRoomInactive:    http.StatusBadRequest,
	calendar.ErrRoomUnavailable: http.StatusConflict,

	attendance.ErrNotFound: http.StatusNotFound,
	grade.ErrNotFound:      http.StatusNotFound,

	request.ErrNotFound:   http.StatusNotFound,
	request.ErrNotPending: http.StatusConflict,

	finance.ErrTransactionNotFound: http.StatusNotFound,
	finance.ErrScholarshipNotFound: http.StatusNotFound,
	finance.ErrNotPending:          http.StatusConflict,

	marketing.ErrLeadNotFound:     http.StatusNotFound,
	marketing.ErrCampaignNotFound: http.StatusNotFound,
	marketing.ErrCampaignSent:     http.StatusConflict,
}

// sentinelStatus looks err up in errStatuses. it compares instead of indexing: err may be unhashable.
func sentinelStatus(err error) (int, bool) {
	for sentinel, status := range errStatuses {
		if err == sentinel {
			return status, true
		}
	}
	return 0, false
}

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
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
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
			if status, ok := sentinelStatus(origErr); ok {
				code = status
				message = origErr.Error()
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var usr user.User
			if ctxUsr, uErr := getContextUser(ctx); uErr == nil {
				usr = ctxUsr
			} else if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.Subject
				usr.Name = claims.Name
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
