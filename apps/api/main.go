package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	"github.com/jmoiron/sqlx"
	"go.uber.org/dig"

	"github.com/trezcool/campus/apps/api/di"
	echoapi "github.com/trezcool/campus/apps/api/echo"
	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/class"
	"github.com/trezcool/campus/services/jobs"
)

type app struct {
	dig.In

	Conf      *core.Config
	Logger    core.Logger
	DBLogger  di.DBLoggerParam
	Redis     di.RedisParam
	DB        *sqlx.DB
	ClassSvc  class.Service
	Scheduler *jobs.Scheduler
	Server    *echoapi.Server
}

func main() {
	conf := core.NewConfig()

	c, err := di.New(conf)
	if err != nil {
		log.Fatal(err)
	}
	if err = c.Invoke(run); err != nil {
		log.Fatal(err)
	}
}

func run(a app) {
	logger := a.Logger
	logger.Info(fmt.Sprintf("Application initializing : version %q", a.Conf.Build))

	core.ParseEmailTemplates(a.Conf, logger)

	if closer, ok := logger.(interface{ Close() }); ok {
		defer closer.Close()
	}
	defer func() {
		if err := a.DB.Close(); err != nil {
			a.DBLogger.Logger.Error("failed to close", err)
		}
		if a.Redis.Client != nil {
			_ = a.Redis.Client.Close()
		}
	}()
	defer logger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(a.Conf.Build)
	expvar.NewString("env").Set(a.Conf.Env)

	go func() {
		if err := http.ListenAndServe(a.Conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Jobs

	if err := a.Scheduler.ScheduleEnrollmentPolicy(
		a.Conf.Jobs.EnrollmentPolicySchedule, a.ClassSvc, a.Conf.Jobs.EnrollmentPolicyFix,
	); err != nil {
		logger.Fatal(err.Error(), err)
		return
	}
	a.Scheduler.Start()

	// =========================================================================
	// Start API Service

	go a.Server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err := <-a.Server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-a.Server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), a.Conf.Server.ShutdownTimeout)
		defer cancel()

		if err := a.Server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = a.Server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
		a.Scheduler.Stop(ctx)
	}
}
