package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core/marketing"
	"github.com/trezcool/campus/core/user"
)

func (s *Server) registerMarketingAPI(authed *echo.Group) {
	lg := authed.Group("/leads", requireRole(user.RoleAdmin))
	lg.GET("", s.queryLeads)
	lg.POST("", s.createLead)
	lg.GET("/stats", s.conversionStats)

	ldg := lg.Group("/:id", objectMiddleware(s.getLead))
	ldg.GET("", s.retrieveLead)
	ldg.PUT("", s.updateLead)
	ldg.DELETE("", s.destroyLead)
	ldg.GET("/activities", s.queryActivities)
	ldg.POST("/activities", s.addActivity)
	ldg.POST("/rescore", s.rescoreLead)

	cg := authed.Group("/campaigns", requireRole(user.RoleAdmin))
	cg.GET("", s.queryCampaigns)
	cg.POST("", s.createCampaign)

	cdg := cg.Group("/:id", objectMiddleware(s.getCampaign))
	cdg.GET("", s.retrieveCampaign)
	cdg.PUT("", s.updateCampaign)
	cdg.DELETE("", s.destroyCampaign)
	cdg.POST("/send", s.sendCampaign)
}

func (s *Server) getLead(ctx echo.Context, id string) (interface{}, error) {
	return s.deps.MarketingSvc.GetLead(ctx.Request().Context(), id)
}

func (s *Server) getCampaign(ctx echo.Context, id string) (interface{}, error) {
	return s.deps.MarketingSvc.GetCampaign(ctx.Request().Context(), id)
}

func (s *Server) queryLeads(ctx echo.Context) error {
	var filter marketing.LeadFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []marketing.Lead{})
	}
	leads, err := s.deps.MarketingSvc.QueryLeads(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying leads")
	}
	return ctx.JSON(http.StatusOK, leads)
}

func (s *Server) bindLead(ctx echo.Context) (marketing.NewLead, error) {
	var data marketing.NewLead
	if err := ctx.Bind(&data); err != nil {
		return data, errors.Wrap(err, "binding to NewLead")
	}
	return data, data.Validate(s.deps.Validate)
}

func (s *Server) createLead(ctx echo.Context) error {
	data, err := s.bindLead(ctx)
	if err != nil {
		return err
	}
	lead, err := s.deps.MarketingSvc.CreateLead(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating lead")
	}
	return ctx.JSON(http.StatusCreated, lead)
}

func (s *Server) retrieveLead(ctx echo.Context) error {
	lead, err := contextLead(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, lead)
}

func (s *Server) updateLead(ctx echo.Context) error {
	lead, err := contextLead(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	data, err := s.bindLead(ctx)
	if err != nil {
		return err
	}
	if lead, err = s.deps.MarketingSvc.UpdateLead(ctx.Request().Context(), lead, data); err != nil {
		return errors.Wrap(err, "updating lead")
	}
	return ctx.JSON(http.StatusOK, lead)
}

func (s *Server) destroyLead(ctx echo.Context) error {
	lead, err := contextLead(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	return noContent(ctx, errors.Wrap(s.deps.MarketingSvc.DeleteLead(ctx.Request().Context(), lead.ID), "deleting lead"))
}

func (s *Server) queryActivities(ctx echo.Context) error {
	lead, err := contextLead(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	acts, err := s.deps.MarketingSvc.QueryActivities(ctx.Request().Context(), lead.ID)
	if err != nil {
		return errors.Wrap(err, "querying activities")
	}
	return ctx.JSON(http.StatusOK, acts)
}

func (s *Server) addActivity(ctx echo.Context) error {
	lead, err := contextLead(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	var data marketing.NewActivity
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewActivity")
	}
	if err = data.Validate(s.deps.Validate); err != nil {
		return err
	}
	act, err := s.deps.MarketingSvc.AddActivity(ctx.Request().Context(), lead, data)
	if err != nil {
		return errors.Wrap(err, "adding activity")
	}
	return ctx.JSON(http.StatusCreated, act)
}

func (s *Server) rescoreLead(ctx echo.Context) error {
	lead, err := contextLead(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	if lead, err = s.deps.MarketingSvc.RescoreLead(ctx.Request().Context(), lead); err != nil {
		return errors.Wrap(err, "rescoring lead")
	}
	return ctx.JSON(http.StatusOK, lead)
}

func (s *Server) conversionStats(ctx echo.Context) error {
	stats, err := s.deps.MarketingSvc.ConversionStats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing conversion stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (s *Server) queryCampaigns(ctx echo.Context) error {
	camps, err := s.deps.MarketingSvc.QueryCampaigns(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying campaigns")
	}
	return ctx.JSON(http.StatusOK, camps)
}

func (s *Server) bindCampaign(ctx echo.Context) (marketing.NewCampaign, error) {
	var data marketing.NewCampaign
	if err := ctx.Bind(&data); err != nil {
		return data, errors.Wrap(err, "binding to NewCampaign")
	}
	return data, data.Validate(s.deps.Validate)
}

func (s *Server) createCampaign(ctx echo.Context) error {
	data, err := s.bindCampaign(ctx)
	if err != nil {
		return err
	}
	camp, err := s.deps.MarketingSvc.CreateCampaign(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating campaign")
	}
	return ctx.JSON(http.StatusCreated, camp)
}

func (s *Server) retrieveCampaign(ctx echo.Context) error {
	camp, err := contextCampaign(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, camp)
}

func (s *Server) updateCampaign(ctx echo.Context) error {
	camp, err := contextCampaign(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	data, err := s.bindCampaign(ctx)
	if err != nil {
		return err
	}
	if camp, err = s.deps.MarketingSvc.UpdateCampaign(ctx.Request().Context(), camp, data); err != nil {
		return errors.Wrap(err, "updating campaign")
	}
	return ctx.JSON(http.StatusOK, camp)
}

func (s *Server) destroyCampaign(ctx echo.Context) error {
	camp, err := contextCampaign(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	return noContent(ctx, errors.Wrap(s.deps.MarketingSvc.DeleteCampaign(ctx.Request().Context(), camp), "deleting campaign"))
}

func (s *Server) sendCampaign(ctx echo.Context) error {
	camp, err := contextCampaign(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	var seg marketing.Segment
	if err = ctx.Bind(&seg); err != nil {
		return errors.Wrap(err, "binding to Segment")
	}
	if err = seg.Validate(s.deps.Validate); err != nil {
		return err
	}
	if camp, err = s.deps.MarketingSvc.SendCampaign(ctx.Request().Context(), camp, seg); err != nil {
		return errors.Wrap(err, "sending campaign")
	}
	return ctx.JSON(http.StatusOK, camp)
}

func contextLead(ctx echo.Context) (marketing.Lead, error) {
	lead, ok := ctx.Get(contextObjectKey).(marketing.Lead)
	if !ok {
		return lead, errors.Wrap(errObjNotFoundInCtx, "retrieving lead from context")
	}
	return lead, nil
}

func contextCampaign(ctx echo.Context) (marketing.Campaign, error) {
	campaign, ok := ctx.Get(contextObjectKey).(marketing.Campaign)
	if !ok {
		return campaign, errors.Wrap(errObjNotFoundInCtx, "retrieving campaign from context")
	}
	return campaign, nil
}
