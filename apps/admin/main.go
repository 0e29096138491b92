package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/mkabenga/presencia/core"
	"github.com/mkabenga/presencia/core/academic"
	"github.com/mkabenga/presencia/core/attendance"
	"github.com/mkabenga/presencia/core/calendar"
	"github.com/mkabenga/presencia/core/permit"
	emailsvc "github.com/mkabenga/presencia/services/email"
	pushsvc "github.com/mkabenga/presencia/services/push"
	"github.com/mkabenga/presencia/storage/database"
	sqlxrepos "github.com/mkabenga/presencia/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig(".")

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	sdb := sqlx.NewDb(db, conf.Database.Engine)
	stdLogger := core.NewStdLogger(logger)
	attendanceRepo := sqlxrepos.NewAttendanceRepository(sdb)

	academicSvc := academic.NewService(sqlxrepos.NewAcademicRepository(sdb), stdLogger)
	calendarSvc := calendar.NewService(sqlxrepos.NewCalendarRepository(sdb))
	permitSvc := permit.NewService(
		sqlxrepos.NewPermitRepository(sdb), attendanceRepo, emailsvc.NewConsoleService(conf), stdLogger)
	attendanceSvc := attendance.NewService(
		attendanceRepo, academicSvc, calendarSvc, permitSvc,
		pushsvc.NewConsoleService(conf), stdLogger, conf.Attendance, conf.Location())

	// start CLI
	cli := commandLine{
		db:            db,
		usrRepo:       sqlxrepos.NewUserRepository(sdb),
		attendanceSvc: attendanceSvc,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
