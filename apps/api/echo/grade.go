package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core/grade"
	"github.com/trezcool/campus/core/user"
)

func (s *Server) registerGradeAPI(authed *echo.Group) {
	staff := requireRole(user.RoleAdmin, user.RoleProfessor)

	gg := authed.Group("/classes/:id/grades", objectMiddleware(s.getClass))
	gg.GET("", s.queryGrades)
	gg.POST("", s.createGrade, staff)
	gg.GET("/final/:student", s.finalGrade)
	gg.PUT("/:gradeId", s.updateGrade, staff)
	gg.DELETE("/:gradeId", s.destroyGrade, staff)
}

func (s *Server) queryGrades(ctx echo.Context) error {
	usr, cls, err := contextUserAndClass(ctx)
	if err != nil {
		return err
	}
	var filter grade.Filter
	if err = ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []grade.Grade{})
	}
	filter.ClassID = cls.ID
	if filter.StudentID, err = scopeStudent(usr, cls, filter.StudentID); err != nil {
		return err
	}

	grades, err := s.deps.GradeSvc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (s *Server) bindGrade(ctx echo.Context) (grade.NewGrade, error) {
	var data grade.NewGrade
	if err := ctx.Bind(&data); err != nil {
		return data, errors.Wrap(err, "binding to NewGrade")
	}
	return data, data.Validate(s.deps.Validate)
}

func (s *Server) createGrade(ctx echo.Context) error {
	usr, cls, err := contextUserAndClass(ctx)
	if err != nil {
		return err
	}
	data, err := s.bindGrade(ctx)
	if err != nil {
		return err
	}
	g, err := s.deps.GradeSvc.Create(ctx.Request().Context(), usr, cls, data)
	if err != nil {
		return errors.Wrap(err, "creating grade")
	}
	return ctx.JSON(http.StatusCreated, g)
}

func (s *Server) finalGrade(ctx echo.Context) error {
	usr, cls, err := contextUserAndClass(ctx)
	if err != nil {
		return err
	}
	studentID, err := scopeStudent(usr, cls, ctx.Param("student"))
	if err != nil {
		return err
	}
	fg, err := s.deps.GradeSvc.FinalGrade(ctx.Request().Context(), cls.ID, studentID)
	if err != nil {
		return errors.Wrap(err, "computing final grade")
	}
	return ctx.JSON(http.StatusOK, fg)
}

func (s *Server) updateGrade(ctx echo.Context) error {
	usr, cls, err := contextUserAndClass(ctx)
	if err != nil {
		return err
	}
	g, err := s.deps.GradeSvc.Get(ctx.Request().Context(), cls, ctx.Param("gradeId"))
	if err != nil {
		return errors.Wrap(err, "getting grade")
	}
	data, err := s.bindGrade(ctx)
	if err != nil {
		return err
	}
	if g, err = s.deps.GradeSvc.Update(ctx.Request().Context(), usr, cls, g, data); err != nil {
		return errors.Wrap(err, "updating grade")
	}
	return ctx.JSON(http.StatusOK, g)
}

func (s *Server) destroyGrade(ctx echo.Context) error {
	usr, cls, err := contextUserAndClass(ctx)
	if err != nil {
		return err
	}
	g, err := s.deps.GradeSvc.Get(ctx.Request().Context(), cls, ctx.Param("gradeId"))
	if err != nil {
		return errors.Wrap(err, "getting grade")
	}
	return noContent(ctx, errors.Wrap(s.deps.GradeSvc.Delete(ctx.Request().Context(), usr, cls, g), "deleting grade"))
}
