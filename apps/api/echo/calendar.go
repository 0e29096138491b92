package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mkabenga/presencia/core"
	"github.com/mkabenga/presencia/core/academic"
	"github.com/mkabenga/presencia/core/calendar"
	"github.com/mkabenga/presencia/core/user"
)

type calendarApi struct {
	userSvc     *user.Service
	academicSvc *academic.Service
	svc         *calendar.Service
}

func registerCalendarAPI(g *echo.Group, jwt echo.MiddlewareFunc, userSvc *user.Service, academicSvc *academic.Service, svc *calendar.Service) {
	api := calendarApi{userSvc: userSvc, academicSvc: academicSvc, svc: svc}

	sg := g.Group("/special-days", jwt)
	sg.GET("", api.query)
	sg.GET("/check", api.check)
	sg.POST("", api.create, adminMiddleware())
	sg.DELETE("/:id", api.delete, adminMiddleware())
}

type DateCheckResponse struct {
	Date    string `json:"date"`
	Blocked bool   `json:"blocked"`
	Reason  string `json:"reason,omitempty"`
}

func (api *calendarApi) create(ctx echo.Context) error {
	var data calendar.NewSpecialDay
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSpecialDay")
	}
	if err := data.Validate(core.Validate); err != nil {
		return err
	}
	admin, err := contextAdmin(ctx, api.userSvc, api.academicSvc)
	if err != nil {
		return err
	}
	d, err := api.svc.Create(ctx.Request().Context(), data, admin.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, d)
}

func (api *calendarApi) query(ctx echo.Context) error {
	days, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying special days")
	}
	return ctx.JSON(http.StatusOK, days)
}

// check tells clients whether class activity is blocked on a date, so the
// mobile app can warn before a scan is even attempted.
func (api *calendarApi) check(ctx echo.Context) error {
	raw := ctx.QueryParam("date")
	if raw == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "date", Error: "this query parameter is required"})
	}
	date, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "date", Error: "must be a date in YYYY-MM-DD format"})
	}

	resp := DateCheckResponse{Date: raw}
	if err = api.svc.CheckDate(ctx.Request().Context(), date); err != nil {
		var bErr *calendar.BlockedError
		if !errors.As(err, &bErr) {
			return err
		}
		resp.Blocked = true
		resp.Reason = bErr.Error()
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *calendarApi) delete(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
