package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/user"
)

func (s *Server) registerEmailLogAPI(authed *echo.Group) {
	authed.GET("/email-logs", s.queryEmailLogs, requireRole(user.RoleAdmin))
}

func (s *Server) queryEmailLogs(ctx echo.Context) error {
	var filter core.EmailLogFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []core.EmailLog{})
	}
	if err := queryRange(ctx, &filter.From, &filter.To); err != nil {
		return err
	}
	logs, err := s.deps.EmailLogs.QueryEmailLogs(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying email logs")
	}
	return ctx.JSON(http.StatusOK, logs)
}
