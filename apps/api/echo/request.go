package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core/request"
	"github.com/trezcool/campus/core/user"
)

func (s *Server) registerRequestAPI(authed *echo.Group) {
	rg := authed.Group("/requests")
	rg.GET("", s.queryRequests)
	rg.POST("", s.submitRequest)

	dg := rg.Group("/:id", objectMiddleware(s.getRequest))
	dg.GET("", s.retrieveRequest)
	dg.POST("/cancel", s.cancelRequest)
	dg.POST("/approve", s.reviewRequest(true), requireRole(user.RoleAdmin))
	dg.POST("/reject", s.reviewRequest(false), requireRole(user.RoleAdmin))
}

func (s *Server) getRequest(ctx echo.Context, id string) (interface{}, error) {
	usr, err := getContextUser(ctx)
	if err != nil {
		return nil, err
	}
	return s.deps.RequestSvc.Get(ctx.Request().Context(), usr, id)
}

func (s *Server) queryRequests(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var filter request.Filter
	if err = ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []request.Request{})
	}
	reqs, err := s.deps.RequestSvc.Query(ctx.Request().Context(), usr, filter)
	if err != nil {
		return errors.Wrap(err, "querying requests")
	}
	return ctx.JSON(http.StatusOK, reqs)
}

func (s *Server) submitRequest(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data request.NewRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRequest")
	}
	if err = data.Validate(s.deps.Validate); err != nil {
		return err
	}

	req, err := s.deps.RequestSvc.Submit(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "submitting request")
	}
	return ctx.JSON(http.StatusCreated, req)
}

func (s *Server) retrieveRequest(ctx echo.Context) error {
	req, err := contextRequest(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, req)
}

func (s *Server) cancelRequest(ctx echo.Context) error {
	usr, req, err := contextUserAndRequest(ctx)
	if err != nil {
		return err
	}
	if req, err = s.deps.RequestSvc.Cancel(ctx.Request().Context(), usr, req); err != nil {
		return errors.Wrap(err, "cancelling request")
	}
	return ctx.JSON(http.StatusOK, req)
}

func (s *Server) reviewRequest(approve bool) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, req, err := contextUserAndRequest(ctx)
		if err != nil {
			return err
		}
		var data request.Review
		if err = ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to Review")
		}
		if err = data.Validate(s.deps.Validate); err != nil {
			return err
		}

		if approve {
			req, err = s.deps.RequestSvc.Approve(ctx.Request().Context(), usr, req, data)
		} else {
			req, err = s.deps.RequestSvc.Reject(ctx.Request().Context(), usr, req, data)
		}
		if err != nil {
			return errors.Wrap(err, "reviewing request")
		}
		return ctx.JSON(http.StatusOK, req)
	}
}

func contextRequest(ctx echo.Context) (request.Request, error) {
	req, ok := ctx.Get(contextObjectKey).(request.Request)
	if !ok {
		return req, errors.Wrap(errObjNotFoundInCtx, "retrieving request from context")
	}
	return req, nil
}

func contextUserAndRequest(ctx echo.Context) (user.User, request.Request, error) {
	req, err := contextRequest(ctx)
	if err != nil {
		return user.User{}, req, err
	}
	usr, err := getContextUser(ctx)
	return usr, req, errors.Wrap(err, "getting context user")
}
