package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/calendar"
	"github.com/trezcool/campus/core/user"
)

func (s *Server) registerCalendarAPI(authed *echo.Group) {
	admin := requireRole(user.RoleAdmin)
	staff := requireRole(user.RoleAdmin, user.RoleProfessor)

	rg := authed.Group("/rooms")
	rg.GET("", s.queryRooms)
	rg.POST("", s.createRoom, admin)

	rdg := rg.Group("/:id", objectMiddleware(s.getRoom))
	rdg.GET("", s.retrieveRoom)
	rdg.PUT("", s.updateRoom, admin)
	rdg.DELETE("", s.destroyRoom, admin)
	rdg.GET("/availability", s.roomAvailability)

	eg := authed.Group("/events")
	eg.GET("", s.queryEvents)
	eg.POST("", s.createEvent, staff)

	edg := eg.Group("/:id", objectMiddleware(s.getEvent))
	edg.GET("", s.retrieveEvent)
	edg.PUT("", s.updateEvent, staff)
	edg.DELETE("", s.destroyEvent, staff)
}

func (s *Server) getRoom(ctx echo.Context, id string) (interface{}, error) {
	return s.deps.CalendarSvc.GetRoom(ctx.Request().Context(), id)
}

func (s *Server) getEvent(ctx echo.Context, id string) (interface{}, error) {
	return s.deps.CalendarSvc.GetEvent(ctx.Request().Context(), id)
}

func (s *Server) queryRooms(ctx echo.Context) error {
	activeOnly, err := queryBool(ctx, "active_only")
	if err != nil {
		return err
	}
	rooms, err := s.deps.CalendarSvc.QueryRooms(ctx.Request().Context(), activeOnly != nil && *activeOnly)
	if err != nil {
		return errors.Wrap(err, "querying rooms")
	}
	return ctx.JSON(http.StatusOK, rooms)
}

func (s *Server) bindRoom(ctx echo.Context) (calendar.NewRoom, error) {
	var data calendar.NewRoom
	if err := ctx.Bind(&data); err != nil {
		return data, errors.Wrap(err, "binding to NewRoom")
	}
	return data, data.Validate(s.deps.Validate)
}

func (s *Server) createRoom(ctx echo.Context) error {
	data, err := s.bindRoom(ctx)
	if err != nil {
		return err
	}
	room, err := s.deps.CalendarSvc.CreateRoom(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating room")
	}
	return ctx.JSON(http.StatusCreated, room)
}

func (s *Server) retrieveRoom(ctx echo.Context) error {
	room, err := contextRoom(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, room)
}

func (s *Server) updateRoom(ctx echo.Context) error {
	room, err := contextRoom(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	data, err := s.bindRoom(ctx)
	if err != nil {
		return err
	}
	if room, err = s.deps.CalendarSvc.UpdateRoom(ctx.Request().Context(), room, data); err != nil {
		return errors.Wrap(err, "updating room")
	}
	return ctx.JSON(http.StatusOK, room)
}

func (s *Server) destroyRoom(ctx echo.Context) error {
	room, err := contextRoom(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	return noContent(ctx, errors.Wrap(s.deps.CalendarSvc.DeleteRoom(ctx.Request().Context(), room.ID), "deleting room"))
}

func (s *Server) roomAvailability(ctx echo.Context) error {
	room, err := contextRoom(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	start, err := queryTime(ctx, "start")
	if err != nil {
		return err
	}
	end, err := queryTime(ctx, "end")
	if err != nil {
		return err
	}
	if start.IsZero() || end.IsZero() {
		return core.NewValidationError(errors.New("start and end are required"))
	}
	if !end.After(start) {
		return core.NewFieldError("end", "must be after start")
	}

	ok, err := s.deps.CalendarSvc.CheckRoomAvailability(
		ctx.Request().Context(), room.ID, start, end, ctx.QueryParam("exclude_event_id"),
	)
	if err != nil {
		return errors.Wrap(err, "checking room availability")
	}
	return ctx.JSON(http.StatusOK, AvailabilityResponse{Available: ok})
}

func (s *Server) queryEvents(ctx echo.Context) error {
	var filter calendar.EventFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []calendar.Event{})
	}
	if err := queryRange(ctx, &filter.From, &filter.To); err != nil {
		return err
	}
	events, err := s.deps.CalendarSvc.QueryEvents(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying events")
	}
	return ctx.JSON(http.StatusOK, events)
}

func (s *Server) bindEvent(ctx echo.Context) (calendar.NewEvent, error) {
	var data calendar.NewEvent
	if err := ctx.Bind(&data); err != nil {
		return data, errors.Wrap(err, "binding to NewEvent")
	}
	return data, data.Validate(s.deps.Validate)
}

func (s *Server) createEvent(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	data, err := s.bindEvent(ctx)
	if err != nil {
		return err
	}
	evt, err := s.deps.CalendarSvc.CreateEvent(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating event")
	}
	return ctx.JSON(http.StatusCreated, evt)
}

func (s *Server) retrieveEvent(ctx echo.Context) error {
	evt, err := contextEvent(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, evt)
}

func (s *Server) updateEvent(ctx echo.Context) error {
	usr, evt, err := contextUserAndEvent(ctx)
	if err != nil {
		return err
	}
	data, err := s.bindEvent(ctx)
	if err != nil {
		return err
	}
	if evt, err = s.deps.CalendarSvc.UpdateEvent(ctx.Request().Context(), usr, evt, data); err != nil {
		return errors.Wrap(err, "updating event")
	}
	return ctx.JSON(http.StatusOK, evt)
}

func (s *Server) destroyEvent(ctx echo.Context) error {
	usr, evt, err := contextUserAndEvent(ctx)
	if err != nil {
		return err
	}
	return noContent(ctx, errors.Wrap(s.deps.CalendarSvc.DeleteEvent(ctx.Request().Context(), usr, evt), "deleting event"))
}

type AvailabilityResponse struct {
	Available bool `json:"available"`
}

func contextRoom(ctx echo.Context) (calendar.Room, error) {
	room, ok := ctx.Get(contextObjectKey).(calendar.Room)
	if !ok {
		return room, errors.Wrap(errObjNotFoundInCtx, "retrieving room from context")
	}
	return room, nil
}

func contextEvent(ctx echo.Context) (calendar.Event, error) {
	event, ok := ctx.Get(contextObjectKey).(calendar.Event)
	if !ok {
		return event, errors.Wrap(errObjNotFoundInCtx, "retrieving event from context")
	}
	return event, nil
}

func contextUserAndEvent(ctx echo.Context) (user.User, calendar.Event, error) {
	event, err := contextEvent(ctx)
	if err != nil {
		return user.User{}, event, err
	}
	usr, err := getContextUser(ctx)
	return usr, event, errors.Wrap(err, "getting context user")
}
