package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata" // institution timezone must resolve in scratch images

	"github.com/jmoiron/sqlx"

	echoapi "github.com/mkabenga/presencia/apps/api/echo"
	"github.com/mkabenga/presencia/core"
	"github.com/mkabenga/presencia/core/academic"
	"github.com/mkabenga/presencia/core/attendance"
	"github.com/mkabenga/presencia/core/calendar"
	"github.com/mkabenga/presencia/core/permit"
	"github.com/mkabenga/presencia/core/report"
	"github.com/mkabenga/presencia/core/user"
	emailsvc "github.com/mkabenga/presencia/services/email"
	logsvc "github.com/mkabenga/presencia/services/logger"
	pdfsvc "github.com/mkabenga/presencia/services/pdf"
	pushsvc "github.com/mkabenga/presencia/services/push"
	"github.com/mkabenga/presencia/storage/database"
	sqlxrepos "github.com/mkabenga/presencia/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig(".")

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	var pushSvc core.PushService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
		pushSvc = pushsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
		pushSvc = pushsvc.NewExpoService(conf, logger)
	}

	loc := conf.Location()
	attendanceRepo := sqlxrepos.NewAttendanceRepository(db)

	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), logger)
	academicSvc := academic.NewService(sqlxrepos.NewAcademicRepository(db), logger)
	calendarSvc := calendar.NewService(sqlxrepos.NewCalendarRepository(db))
	permitSvc := permit.NewService(sqlxrepos.NewPermitRepository(db), attendanceRepo, mailSvc, logger)
	attendanceSvc := attendance.NewService(
		attendanceRepo, academicSvc, calendarSvc, permitSvc, pushSvc, logger, conf.Attendance, loc)
	reportSvc := report.NewService(academicSvc, attendanceSvc, pdfsvc.NewRosterRenderer(conf.AppName), loc)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	user.RegisterValidators(core.Validate, core.Translator, conf.WorkDir)

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(&echoapi.Options{
		Config:        conf,
		Logger:        logger,
		UserSvc:       usrSvc,
		AcademicSvc:   academicSvc,
		CalendarSvc:   calendarSvc,
		AttendanceSvc: attendanceSvc,
		PermitSvc:     permitSvc,
		ReportSvc:     reportSvc,
	})

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// =========================================================================
	// Shutdown

	select {
	case err = <-serverErrors:
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-quit:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))
		stop(server, conf, logger)

	case <-server.Shutdown():
		logger.Info("integrity issue: Start shutdown...")
		stop(server, conf, logger)
	}
}

// stop gives outstanding requests a deadline for completion.
func stop(server echoapi.Server, conf *core.Config, logger core.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		logger.Fatal(fmt.Sprintf("could not stop server gracefully: %v", err), err)
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return sqlx.NewDb(db, conf.Database.Engine), nil
}
