package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core/attendance"
	"github.com/trezcool/campus/core/class"
	"github.com/trezcool/campus/core/user"
)

func (s *Server) registerAttendanceAPI(authed *echo.Group) {
	ag := authed.Group("/classes/:id/attendance", objectMiddleware(s.getClass))
	ag.GET("", s.queryAttendance)
	ag.POST("", s.recordAttendance, requireRole(user.RoleAdmin, user.RoleProfessor))
	ag.GET("/summary/:student", s.attendanceSummary)
	ag.DELETE("/:recordId", s.destroyAttendance, requireRole(user.RoleAdmin, user.RoleProfessor))
}

// scopeStudent returns the student whose class data usr may read.
// admins and the professor of cls read anyone's; students only their own.
func scopeStudent(usr user.User, cls class.Class, studentID string) (string, error) {
	if attendance.CanRecord(usr, cls) {
		return studentID, nil
	}
	if studentID != "" && studentID != usr.ID {
		return "", errHttpForbidden
	}
	return usr.ID, nil
}

func (s *Server) queryAttendance(ctx echo.Context) error {
	usr, cls, err := contextUserAndClass(ctx)
	if err != nil {
		return err
	}
	var filter attendance.Filter
	if err = ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []attendance.Record{})
	}
	if err = queryRange(ctx, &filter.From, &filter.To); err != nil {
		return err
	}
	filter.ClassID = cls.ID
	if filter.StudentID, err = scopeStudent(usr, cls, filter.StudentID); err != nil {
		return err
	}

	recs, err := s.deps.AttendanceSvc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (s *Server) recordAttendance(ctx echo.Context) error {
	usr, cls, err := contextUserAndClass(ctx)
	if err != nil {
		return err
	}
	var data attendance.NewSession
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if err = data.Validate(s.deps.Validate); err != nil {
		return err
	}

	recs, err := s.deps.AttendanceSvc.RecordSession(ctx.Request().Context(), usr, cls, data)
	if err != nil {
		return errors.Wrap(err, "recording attendance")
	}
	return ctx.JSON(http.StatusCreated, recs)
}

func (s *Server) attendanceSummary(ctx echo.Context) error {
	usr, cls, err := contextUserAndClass(ctx)
	if err != nil {
		return err
	}
	studentID, err := scopeStudent(usr, cls, ctx.Param("student"))
	if err != nil {
		return err
	}
	sum, err := s.deps.AttendanceSvc.Summary(ctx.Request().Context(), cls.ID, studentID)
	if err != nil {
		return errors.Wrap(err, "summarizing attendance")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (s *Server) destroyAttendance(ctx echo.Context) error {
	usr, cls, err := contextUserAndClass(ctx)
	if err != nil {
		return err
	}
	err = s.deps.AttendanceSvc.Delete(ctx.Request().Context(), usr, cls, ctx.Param("recordId"))
	return noContent(ctx, errors.Wrap(err, "deleting attendance record"))
}
