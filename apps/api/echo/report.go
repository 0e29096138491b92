package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mkabenga/presencia/core"
	"github.com/mkabenga/presencia/core/academic"
	"github.com/mkabenga/presencia/core/report"
	"github.com/mkabenga/presencia/core/user"
)

type reportApi struct {
	userSvc     *user.Service
	academicSvc *academic.Service
	svc         *report.Service
}

func registerReportAPI(g *echo.Group, jwt echo.MiddlewareFunc, userSvc *user.Service, academicSvc *academic.Service, svc *report.Service) {
	api := reportApi{userSvc: userSvc, academicSvc: academicSvc, svc: svc}

	rg := g.Group("/reports", jwt)
	rg.GET("/students/me", api.mySummary, studentMiddleware())
	rg.GET("/students/:id", api.studentSummary, adminMiddleware())
	rg.GET("/general", api.generalSummary, adminMiddleware())
	rg.GET("/sessions/:id/roster.pdf", api.sessionRosterPDF, teacherMiddleware())
}

func (api *reportApi) mySummary(ctx echo.Context) error {
	student, err := contextStudent(ctx, api.userSvc, api.academicSvc)
	if err != nil {
		return err
	}
	summary, err := api.svc.StudentSummary(ctx.Request().Context(), student)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *reportApi) studentSummary(ctx echo.Context) error {
	student, err := api.academicSvc.GetStudent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	summary, err := api.svc.StudentSummary(ctx.Request().Context(), student)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *reportApi) generalSummary(ctx echo.Context) error {
	termID := ctx.QueryParam("term_id")
	if termID == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "term_id", Error: "this query parameter is required"})
	}
	summary, err := api.svc.GeneralSummary(ctx.Request().Context(), ctx.QueryParam("program_id"), termID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *reportApi) sessionRosterPDF(ctx echo.Context) error {
	sessionID := ctx.Param("id")
	blob, err := api.svc.SessionRosterPDF(ctx.Request().Context(), sessionID)
	if err != nil {
		return err
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", "roster-"+sessionID+".pdf"))
	return ctx.Blob(http.StatusOK, "application/pdf", blob)
}
