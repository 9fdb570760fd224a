package echoapi

import (
	"fmt"
	"math"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

const contextObjectKey = "object"

var errObjNotFoundInCtx = errors.New("object not found in echo.Context")

// requireRole lets through the context users holding one of roles.
func requireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			for _, role := range roles {
				if usr.Role == role {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

// rateLimit caps the requests per client IP on a route. limiter errors let the request through.
func (s *Server) rateLimit(route string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if s.deps.RateLimiter == nil {
				return next(ctx)
			}
			ok, retryAfter, err := s.deps.RateLimiter.Allow(ctx.Request().Context(), route+":"+ctx.RealIP())
			if err != nil {
				s.deps.Logger.Warn(fmt.Sprintf("rate limiter: %v", err), err)
				return next(ctx)
			}
			if !ok {
				ctx.Response().Header().Set("Retry-After", fmt.Sprint(int(math.Ceil(retryAfter.Seconds()))))
				return errTooManyRequests
			}
			return next(ctx)
		}
	}
}

// objectMiddleware loads the object of the :id path param into the context.
// get returns the domain not-found error for missing objects, mapped to 404 by the error handler.
func objectMiddleware(get func(ctx echo.Context, id string) (interface{}, error)) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			obj, err := get(ctx, ctx.Param("id"))
			if err != nil {
				return err
			}
			ctx.Set(contextObjectKey, obj)
			return next(ctx)
		}
	}
}

func noContent(ctx echo.Context, err error) error {
	if err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
