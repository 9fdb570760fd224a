// Package di wires the API process with go.uber.org/dig.
package di

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/campus/apps/api/echo"
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
	emailsvc "github.com/trezcool/campus/services/email"
	"github.com/trezcool/campus/services/jobs"
	logsvc "github.com/trezcool/campus/services/logger"
	"github.com/trezcool/campus/storage/cache"
	"github.com/trezcool/campus/storage/database"
	sqlxrepos "github.com/trezcool/campus/storage/database/sqlx"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	JobsLoggerParam struct {
		dig.In
		Logger core.Logger `name:"jobsLogger"`
	}

	// RedisParam holds the redis client; nil when redis.addr is not set.
	RedisParam struct {
		dig.In
		Client *redis.Client `optional:"true"`
	}

	provider struct {
		fn   interface{}
		opts []dig.ProvideOption
	}

	serverParams struct {
		dig.In

		Conf        *core.Config
		Logger      core.Logger
		Validate    *validator.Validate
		RateLimiter core.RateLimiter

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
)

func newStdLogger(conf *core.Config, prefix string, flags int) core.Logger {
	return logsvc.NewRollbarLogger(log.New(os.Stdout, prefix, flags), conf)
}

func newLogger(conf *core.Config) core.Logger {
	return newStdLogger(conf, "API : ", log.LstdFlags)
}

func newDBLogger(conf *core.Config) core.Logger {
	return newStdLogger(conf, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
}

func newJobsLogger(conf *core.Config) core.Logger {
	return newStdLogger(conf, "JOBS : ", log.LstdFlags)
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, errors.Wrap(err, "creating database")
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(db.DB, "up"); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "migrating database")
	}
	loggerParam.Logger.Info(fmt.Sprintf("connected to %s/%s", conf.Database.Address(), conf.Database.Name))
	return db, nil
}

// newRedis is not provided when redis.addr is empty; the in-memory fallbacks are used then.
func newRedis(conf *core.Config, logger core.Logger) (*redis.Client, error) {
	client, err := cache.Open(context.Background(), conf.Redis)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to redis")
	}
	logger.Info(fmt.Sprintf("connected to redis at %s", conf.Redis.Addr))
	return client, nil
}

func newRoleCache(conf *core.Config, rp RedisParam) user.RoleCache {
	if rp.Client != nil {
		return cache.NewRedisRoleCache(rp.Client, conf.Roles.Cooldown)
	}
	return user.NewMemoryRoleCache(conf.Roles.Cooldown)
}

func newRateLimiter(conf *core.Config, rp RedisParam) core.RateLimiter {
	if rp.Client != nil {
		return cache.NewRedisRateLimiter(rp.Client, "ratelimit", conf.Server.RateLimitRequests, conf.Server.RateLimitWindow)
	}
	return cache.NewMemoryRateLimiter(conf.Server.RateLimitRequests, conf.Server.RateLimitWindow)
}

func newEmailService(conf *core.Config, logs core.EmailLogRepository, logger core.Logger) (core.EmailService, error) {
	return emailsvc.New(conf, logs, logger)
}

func newClassService(repo class.Repository, courses course.Repository) class.Service {
	return class.NewService(repo, courses)
}

func newTracker(
	repo progress.Repository,
	courses course.Repository,
	classes class.Service,
	users user.Service,
	mailSvc core.EmailService,
	logger core.Logger,
) progress.Tracker {
	return progress.NewTracker(repo, courses, classes, users, mailSvc, logger)
}

func newRequestService(
	repo request.Repository,
	classes class.Service,
	users user.Service,
	mailSvc core.EmailService,
	logger core.Logger,
) request.Service {
	return request.NewService(repo, classes, users, mailSvc, logger)
}

func newScheduler(loggerParam JobsLoggerParam) *jobs.Scheduler {
	return jobs.NewScheduler(loggerParam.Logger)
}

func newServer(p serverParams) *echoapi.Server {
	translator := core.NewTranslator()
	core.InitValidators(p.Validate, translator)
	user.InitValidators(p.Validate, translator)

	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:          p.Conf,
		Logger:        p.Logger,
		Validate:      p.Validate,
		Translator:    translator,
		RateLimiter:   p.RateLimiter,
		UserSvc:       p.UserSvc,
		CourseSvc:     p.CourseSvc,
		ClassSvc:      p.ClassSvc,
		Progress:      p.Progress,
		CalendarSvc:   p.CalendarSvc,
		AttendanceSvc: p.AttendanceSvc,
		GradeSvc:      p.GradeSvc,
		RequestSvc:    p.RequestSvc,
		FinanceSvc:    p.FinanceSvc,
		MarketingSvc:  p.MarketingSvc,
		EmailLogs:     p.EmailLogs,
	})
}

// New returns the dependency injection container of the API process.
func New(conf *core.Config) (*dig.Container, error) {
	c := dig.New()

	providers := []provider{
		{fn: func() *core.Config { return conf }},
		{fn: newLogger},
		{fn: newDBLogger, opts: []dig.ProvideOption{dig.Name("dbLogger")}},
		{fn: newJobsLogger, opts: []dig.ProvideOption{dig.Name("jobsLogger")}},
		{fn: newDB},
		{fn: newRoleCache},
		{fn: newRateLimiter},
		{fn: validator.New},

		// repositories
		{fn: sqlxrepos.NewUserRepository},
		{fn: sqlxrepos.NewCourseRepository},
		{fn: sqlxrepos.NewClassRepository},
		{fn: sqlxrepos.NewProgressRepository},
		{fn: sqlxrepos.NewCalendarRepository},
		{fn: sqlxrepos.NewAttendanceRepository},
		{fn: sqlxrepos.NewGradeRepository},
		{fn: sqlxrepos.NewRequestRepository},
		{fn: sqlxrepos.NewFinanceRepository},
		{fn: sqlxrepos.NewMarketingRepository},
		{fn: sqlxrepos.NewEmailLogRepository},

		// services
		{fn: newEmailService},
		{fn: user.NewRoleResolver},
		{fn: user.NewService},
		{fn: course.NewService},
		{fn: newClassService},
		{fn: newTracker},
		{fn: calendar.NewService},
		{fn: attendance.NewService},
		{fn: grade.NewService},
		{fn: newRequestService},
		{fn: finance.NewService},
		{fn: marketing.NewService},
		{fn: newScheduler},
		{fn: newServer},
	}
	if conf.Redis.Addr != "" {
		providers = append(providers, provider{fn: newRedis})
	}

	for _, p := range providers {
		if err := c.Provide(p.fn, p.opts...); err != nil {
			return nil, errors.Wrap(err, "failed to provide dependency")
		}
	}
	return c, nil
}
