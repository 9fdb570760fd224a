package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core/user"
)

func (s *Server) registerProgressAPI(g, authed *echo.Group) {
	g.GET("/certificates/verify/:code", s.verifyCertificate)

	authed.POST("/lessons/:id/complete", s.completeLesson, requireRole(user.RoleStudent))
	authed.GET("/courses/:id/progress", s.retrieveCourseProgress)
	authed.GET("/certificates", s.queryCertificates)
}

func (s *Server) completeLesson(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	res, err := s.deps.Progress.MarkLessonCompleted(ctx.Request().Context(), usr.ID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "marking lesson completed")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (s *Server) retrieveCourseProgress(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	userID, err := s.targetUserID(ctx, usr)
	if err != nil {
		return err
	}
	prog, err := s.deps.Progress.GetCourseProgress(ctx.Request().Context(), userID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course progress")
	}
	return ctx.JSON(http.StatusOK, prog)
}

func (s *Server) queryCertificates(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	userID, err := s.targetUserID(ctx, usr)
	if err != nil {
		return err
	}
	certs, err := s.deps.Progress.ListCertificates(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "listing certificates")
	}
	return ctx.JSON(http.StatusOK, certs)
}

func (s *Server) verifyCertificate(ctx echo.Context) error {
	cert, err := s.deps.Progress.VerifyCertificate(ctx.Request().Context(), ctx.Param("code"))
	if err != nil {
		return errors.Wrap(err, "verifying certificate")
	}
	return ctx.JSON(http.StatusOK, cert)
}

// targetUserID is the ?user_id param for admins, the context user otherwise.
func (s *Server) targetUserID(ctx echo.Context, usr user.User) (string, error) {
	id := ctx.QueryParam("user_id")
	if id == "" || id == usr.ID {
		return usr.ID, nil
	}
	if !usr.IsAdmin() {
		return "", errHttpForbidden
	}
	return id, nil
}
