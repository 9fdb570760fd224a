package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core/course"
	"github.com/trezcool/campus/core/user"
)

func (s *Server) registerCourseAPI(authed *echo.Group) {
	cg := authed.Group("/courses")
	cg.GET("", s.queryCourses)
	cg.POST("", s.createCourse, requireRole(user.RoleAdmin, user.RoleProfessor))

	dg := cg.Group("/:id", objectMiddleware(s.getCourse))
	dg.GET("", s.retrieveCourse)
	dg.PUT("", s.updateCourse)
	dg.DELETE("", s.destroyCourse)
	dg.POST("/submit", s.submitCourse)
	dg.POST("/approve", s.approveCourse, requireRole(user.RoleAdmin))
	dg.POST("/reject", s.rejectCourse, requireRole(user.RoleAdmin))

	dg.POST("/modules", s.addModule)
	dg.PUT("/modules/:moduleId", s.updateModule)
	dg.DELETE("/modules/:moduleId", s.destroyModule)
	dg.POST("/modules/:moduleId/lessons", s.addLesson)
	dg.PUT("/lessons/:lessonId", s.updateLesson)
	dg.DELETE("/lessons/:lessonId", s.destroyLesson)
}

func (s *Server) getCourse(ctx echo.Context, id string) (interface{}, error) {
	usr, err := getContextUser(ctx)
	if err != nil {
		return nil, err
	}
	return s.deps.CourseSvc.Get(ctx.Request().Context(), usr, id)
}

func (s *Server) queryCourses(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var filter course.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Course{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	courses, err := s.deps.CourseSvc.Query(ctx.Request().Context(), usr, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (s *Server) createCourse(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data course.NewCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err = data.Validate(s.deps.Validate); err != nil {
		return err
	}

	crs, err := s.deps.CourseSvc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (s *Server) retrieveCourse(ctx echo.Context) error {
	crs, err := contextCourse(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (s *Server) updateCourse(ctx echo.Context) error {
	usr, crs, err := contextUserAndCourse(ctx)
	if err != nil {
		return err
	}
	var data course.UpdateCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err = data.Validate(crs, s.deps.Validate); err != nil {
		return err
	}

	crs, err = s.deps.CourseSvc.Update(ctx.Request().Context(), usr, crs, data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (s *Server) destroyCourse(ctx echo.Context) error {
	usr, crs, err := contextUserAndCourse(ctx)
	if err != nil {
		return err
	}
	return noContent(ctx, errors.Wrap(s.deps.CourseSvc.Delete(ctx.Request().Context(), usr, crs), "deleting course"))
}

func (s *Server) submitCourse(ctx echo.Context) error {
	usr, crs, err := contextUserAndCourse(ctx)
	if err != nil {
		return err
	}
	if crs, err = s.deps.CourseSvc.Submit(ctx.Request().Context(), usr, crs); err != nil {
		return errors.Wrap(err, "submitting course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (s *Server) approveCourse(ctx echo.Context) error {
	usr, crs, err := contextUserAndCourse(ctx)
	if err != nil {
		return err
	}
	if crs, err = s.deps.CourseSvc.Approve(ctx.Request().Context(), usr, crs); err != nil {
		return errors.Wrap(err, "approving course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (s *Server) rejectCourse(ctx echo.Context) error {
	usr, crs, err := contextUserAndCourse(ctx)
	if err != nil {
		return err
	}
	var data course.RejectCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RejectCourse")
	}
	if err = data.Validate(s.deps.Validate); err != nil {
		return err
	}
	if crs, err = s.deps.CourseSvc.Reject(ctx.Request().Context(), usr, crs, data); err != nil {
		return errors.Wrap(err, "rejecting course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (s *Server) bindModule(ctx echo.Context) (course.NewModule, error) {
	var data course.NewModule
	if err := ctx.Bind(&data); err != nil {
		return data, errors.Wrap(err, "binding to NewModule")
	}
	return data, data.Validate(s.deps.Validate)
}

func (s *Server) addModule(ctx echo.Context) error {
	usr, crs, err := contextUserAndCourse(ctx)
	if err != nil {
		return err
	}
	data, err := s.bindModule(ctx)
	if err != nil {
		return err
	}
	mod, err := s.deps.CourseSvc.AddModule(ctx.Request().Context(), usr, crs, data)
	if err != nil {
		return errors.Wrap(err, "adding module")
	}
	return ctx.JSON(http.StatusCreated, mod)
}

func (s *Server) updateModule(ctx echo.Context) error {
	usr, crs, err := contextUserAndCourse(ctx)
	if err != nil {
		return err
	}
	data, err := s.bindModule(ctx)
	if err != nil {
		return err
	}
	mod, err := s.deps.CourseSvc.UpdateModule(ctx.Request().Context(), usr, crs, ctx.Param("moduleId"), data)
	if err != nil {
		return errors.Wrap(err, "updating module")
	}
	return ctx.JSON(http.StatusOK, mod)
}

func (s *Server) destroyModule(ctx echo.Context) error {
	usr, crs, err := contextUserAndCourse(ctx)
	if err != nil {
		return err
	}
	err = s.deps.CourseSvc.DeleteModule(ctx.Request().Context(), usr, crs, ctx.Param("moduleId"))
	return noContent(ctx, errors.Wrap(err, "deleting module"))
}

func (s *Server) bindLesson(ctx echo.Context) (course.NewLesson, error) {
	var data course.NewLesson
	if err := ctx.Bind(&data); err != nil {
		return data, errors.Wrap(err, "binding to NewLesson")
	}
	return data, data.Validate(s.deps.Validate)
}

func (s *Server) addLesson(ctx echo.Context) error {
	usr, crs, err := contextUserAndCourse(ctx)
	if err != nil {
		return err
	}
	data, err := s.bindLesson(ctx)
	if err != nil {
		return err
	}
	lsn, err := s.deps.CourseSvc.AddLesson(ctx.Request().Context(), usr, crs, ctx.Param("moduleId"), data)
	if err != nil {
		return errors.Wrap(err, "adding lesson")
	}
	return ctx.JSON(http.StatusCreated, lsn)
}

func (s *Server) updateLesson(ctx echo.Context) error {
	usr, crs, err := contextUserAndCourse(ctx)
	if err != nil {
		return err
	}
	data, err := s.bindLesson(ctx)
	if err != nil {
		return err
	}
	lsn, err := s.deps.CourseSvc.UpdateLesson(ctx.Request().Context(), usr, crs, ctx.Param("lessonId"), data)
	if err != nil {
		return errors.Wrap(err, "updating lesson")
	}
	return ctx.JSON(http.StatusOK, lsn)
}

func (s *Server) destroyLesson(ctx echo.Context) error {
	usr, crs, err := contextUserAndCourse(ctx)
	if err != nil {
		return err
	}
	err = s.deps.CourseSvc.DeleteLesson(ctx.Request().Context(), usr, crs, ctx.Param("lessonId"))
	return noContent(ctx, errors.Wrap(err, "deleting lesson"))
}

func contextCourse(ctx echo.Context) (course.Course, error) {
	crs, ok := ctx.Get(contextObjectKey).(course.Course)
	if !ok {
		return crs, errors.Wrap(errObjNotFoundInCtx, "retrieving course from context")
	}
	return crs, nil
}

func contextUserAndCourse(ctx echo.Context) (user.User, course.Course, error) {
	crs, err := contextCourse(ctx)
	if err != nil {
		return user.User{}, crs, err
	}
	usr, err := getContextUser(ctx)
	return usr, crs, errors.Wrap(err, "getting context user")
}
