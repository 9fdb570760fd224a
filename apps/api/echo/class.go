package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/class"
	"github.com/trezcool/campus/core/user"
)

func (s *Server) registerClassAPI(authed *echo.Group) {
	admin := requireRole(user.RoleAdmin)

	cg := authed.Group("/classes")
	cg.GET("", s.queryClasses)
	cg.POST("", s.createClass, admin)

	dg := cg.Group("/:id", objectMiddleware(s.getClass))
	dg.GET("", s.retrieveClass)
	dg.PUT("", s.updateClass, admin)
	dg.DELETE("", s.destroyClass, admin)
	dg.POST("/enroll", s.enroll)
	dg.GET("/enrollments", s.queryClassEnrollments)

	eg := authed.Group("/enrollments")
	eg.GET("", s.queryEnrollments)
	eg.POST("/policy-check", s.checkEnrollmentPolicy, admin)

	edg := eg.Group("/:id", objectMiddleware(s.getEnrollment))
	edg.GET("", s.retrieveEnrollment)
	edg.POST("/status", s.setEnrollmentStatus)
}

func (s *Server) getClass(ctx echo.Context, id string) (interface{}, error) {
	return s.deps.ClassSvc.GetByID(ctx.Request().Context(), id)
}

// getEnrollment hides the enrollments of other users from non-admins.
func (s *Server) getEnrollment(ctx echo.Context, id string) (interface{}, error) {
	usr, err := getContextUser(ctx)
	if err != nil {
		return nil, err
	}
	enr, err := s.deps.ClassSvc.GetEnrollment(ctx.Request().Context(), id)
	if err != nil {
		return nil, err
	}
	if !usr.IsAdmin() && enr.UserID != usr.ID {
		return nil, class.ErrEnrollmentNotFound
	}
	return enr, nil
}

func (s *Server) queryClasses(ctx echo.Context) error {
	var filter class.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []class.Class{})
	}
	classes, err := s.deps.ClassSvc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (s *Server) bindClass(ctx echo.Context) (class.NewClass, error) {
	var data class.NewClass
	if err := ctx.Bind(&data); err != nil {
		return data, errors.Wrap(err, "binding to NewClass")
	}
	return data, data.Validate(s.deps.Validate)
}

func (s *Server) createClass(ctx echo.Context) error {
	data, err := s.bindClass(ctx)
	if err != nil {
		return err
	}
	cls, err := s.deps.ClassSvc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, cls)
}

func (s *Server) retrieveClass(ctx echo.Context) error {
	cls, err := contextClass(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (s *Server) updateClass(ctx echo.Context) error {
	cls, err := contextClass(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	data, err := s.bindClass(ctx)
	if err != nil {
		return err
	}
	if cls, err = s.deps.ClassSvc.Update(ctx.Request().Context(), cls, data); err != nil {
		return errors.Wrap(err, "updating class")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (s *Server) destroyClass(ctx echo.Context) error {
	cls, err := contextClass(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	return noContent(ctx, errors.Wrap(s.deps.ClassSvc.Delete(ctx.Request().Context(), cls.ID), "deleting class"))
}

func (s *Server) enroll(ctx echo.Context) error {
	by, cls, err := contextUserAndClass(ctx)
	if err != nil {
		return err
	}
	var data class.NewEnrollment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}
	if err = s.deps.Validate.Struct(data); err != nil {
		return err
	}

	usr := by
	if data.UserID != "" && data.UserID != by.ID {
		if !by.IsAdmin() {
			return errHttpForbidden
		}
		usr, err = s.deps.UserSvc.GetByID(ctx.Request().Context(), data.UserID)
		if err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				return core.NewFieldError("user_id", "user not found")
			}
			return errors.Wrap(err, "finding user by ID")
		}
	}

	enr, err := s.deps.ClassSvc.Enroll(ctx.Request().Context(), by, usr, cls)
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (s *Server) queryClassEnrollments(ctx echo.Context) error {
	usr, cls, err := contextUserAndClass(ctx)
	if err != nil {
		return err
	}
	if !usr.IsAdmin() && cls.ProfessorID != usr.ID {
		return errHttpForbidden
	}
	var filter class.EnrollmentFilter
	if err = ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []class.Enrollment{})
	}
	filter.ClassID = cls.ID

	enrs, err := s.deps.ClassSvc.QueryEnrollments(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	return ctx.JSON(http.StatusOK, enrs)
}

func (s *Server) queryEnrollments(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var filter class.EnrollmentFilter
	if err = ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []class.Enrollment{})
	}
	if !usr.IsAdmin() {
		filter.UserID = usr.ID
	}

	enrs, err := s.deps.ClassSvc.QueryEnrollments(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	return ctx.JSON(http.StatusOK, enrs)
}

func (s *Server) retrieveEnrollment(ctx echo.Context) error {
	enr, err := contextEnrollment(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (s *Server) setEnrollmentStatus(ctx echo.Context) error {
	usr, enr, err := contextUserAndEnrollment(ctx)
	if err != nil {
		return err
	}
	var data EnrollmentStatusRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EnrollmentStatusRequest")
	}
	if err = s.deps.Validate.Struct(data); err != nil {
		return err
	}

	if enr, err = s.deps.ClassSvc.SetEnrollmentStatus(ctx.Request().Context(), usr, enr, data.Status); err != nil {
		return errors.Wrap(err, "setting enrollment status")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (s *Server) checkEnrollmentPolicy(ctx echo.Context) error {
	fix, err := queryBool(ctx, "fix")
	if err != nil {
		return err
	}
	report, err := s.deps.ClassSvc.CheckEnrollmentPolicy(ctx.Request().Context(), fix != nil && *fix)
	if err != nil {
		return errors.Wrap(err, "checking enrollment policy")
	}
	return ctx.JSON(http.StatusOK, report)
}

type EnrollmentStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active locked cancelled withdrawn inactive"`
}

func contextClass(ctx echo.Context) (class.Class, error) {
	cls, ok := ctx.Get(contextObjectKey).(class.Class)
	if !ok {
		return cls, errors.Wrap(errObjNotFoundInCtx, "retrieving class from context")
	}
	return cls, nil
}

func contextUserAndClass(ctx echo.Context) (user.User, class.Class, error) {
	cls, err := contextClass(ctx)
	if err != nil {
		return user.User{}, cls, err
	}
	usr, err := getContextUser(ctx)
	return usr, cls, errors.Wrap(err, "getting context user")
}

func contextEnrollment(ctx echo.Context) (class.Enrollment, error) {
	enrollment, ok := ctx.Get(contextObjectKey).(class.Enrollment)
	if !ok {
		return enrollment, errors.Wrap(errObjNotFoundInCtx, "retrieving enrollment from context")
	}
	return enrollment, nil
}

func contextUserAndEnrollment(ctx echo.Context) (user.User, class.Enrollment, error) {
	enrollment, err := contextEnrollment(ctx)
	if err != nil {
		return user.User{}, enrollment, err
	}
	usr, err := getContextUser(ctx)
	return usr, enrollment, errors.Wrap(err, "getting context user")
}
