package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/attendance"
	"github.com/trezcool/campus/core/calendar"
	"github.com/trezcool/campus/core/class"
	"github.com/trezcool/campus/core/course"
	"github.com/trezcool/campus/core/finance"
	"github.com/trezcool/campus/core/grade"
	"github.com/trezcool/campus/core/marketing"
	"github.com/trezcool/campus/core/progress"
	"github.com/trezcool/campus/core/request"
	"github.com/trezcool/campus/core/user"
)

type (
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		RateLimiter    core.RateLimiter
		DisableReqLogs bool

		UserSvc       user.Service
		CourseSvc     course.Service
		ClassSvc      class.Service
		Progress      progress.Tracker
		CalendarSvc   calendar.Service
		AttendanceSvc attendance.Service
		GradeSvc      grade.Service
		RequestSvc    request.Service
		FinanceSvc    finance.Service
		MarketingSvc  marketing.Service
		EmailLogs     core.EmailLogRepository
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		auth     jwtAuth
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		auth:     jwtAuth{conf: deps.Conf},
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: conf.Server.CORSOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug && !conf.TestMode

	s.app.GET("/", s.home)

	g := s.app.Group("/api")
	authed := g.Group("", middleware.JWTWithConfig(s.auth.config()), s.authUser)

	s.registerUserAPI(g, authed)
	s.registerCourseAPI(authed)
	s.registerProgressAPI(g, authed)
	s.registerClassAPI(authed)
	s.registerCalendarAPI(authed)
	s.registerAttendanceAPI(authed)
	s.registerGradeAPI(authed)
	s.registerRequestAPI(authed)
	s.registerFinanceAPI(authed)
	s.registerMarketingAPI(authed)
	s.registerEmailLogAPI(authed)
}

// Start blocks until the server stops. listening errors are sent to Errors.
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.deps.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
