package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/mkabenga/presencia/core"
	"github.com/mkabenga/presencia/core/academic"
	"github.com/mkabenga/presencia/core/attendance"
	"github.com/mkabenga/presencia/core/calendar"
	"github.com/mkabenga/presencia/core/permit"
	"github.com/mkabenga/presencia/core/report"
	"github.com/mkabenga/presencia/core/user"
)

type (
	Options struct {
		Config         *core.Config
		Logger         core.Logger
		DisableReqLogs bool

		UserSvc       *user.Service
		AcademicSvc   *academic.Service
		CalendarSvc   *calendar.Service
		AttendanceSvc *attendance.Service
		PermitSvc     *permit.Service
		ReportSvc     *report.Service
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
		// Shutdown signals a non-recoverable integrity issue; the main
		// goroutine listens on it to stop the server.
		Shutdown() <-chan struct{}
	}

	server struct {
		opts     *Options
		app      *echo.Echo
		shutdown chan struct{}
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	appJWTConfig.SigningKey = []byte(opts.Config.SecretKey)

	s := &server{
		opts:     opts,
		app:      echo.New(),
		shutdown: make(chan struct{}, 1),
	}
	s.setup()
	return s
}

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- struct{}{}:
	default:
	}
}

func (s *server) Shutdown() <-chan struct{} { return s.shutdown }

func (s *server) setup() {
	conf := s.opts.Config

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(appJWTConfig)

	registerUserAPI(v1, jwt, conf, s.opts.UserSvc)
	registerAcademicAPI(v1, jwt, s.opts.UserSvc, s.opts.AcademicSvc)
	registerCalendarAPI(v1, jwt, s.opts.UserSvc, s.opts.AcademicSvc, s.opts.CalendarSvc)
	registerAttendanceAPI(v1, jwt, s.opts.UserSvc, s.opts.AcademicSvc, s.opts.AttendanceSvc)
	registerPermitAPI(v1, jwt, s.opts.UserSvc, s.opts.AcademicSvc, s.opts.PermitSvc)
	registerReportAPI(v1, jwt, s.opts.UserSvc, s.opts.AcademicSvc, s.opts.ReportSvc)
}

func (s *server) Start() error {
	return s.app.Start(s.opts.Config.Server.Address())
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Presencia API!")
}
