package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mkabenga/presencia/core"
	"github.com/mkabenga/presencia/core/academic"
	"github.com/mkabenga/presencia/core/permit"
	"github.com/mkabenga/presencia/core/user"
)

type CoveredSessionsRequest struct {
	SessionIDs []string `json:"session_ids" validate:"required,min=1,dive,uuid4"`
}

type permitApi struct {
	userSvc     *user.Service
	academicSvc *academic.Service
	svc         *permit.Service
}

func registerPermitAPI(g *echo.Group, jwt echo.MiddlewareFunc, userSvc *user.Service, academicSvc *academic.Service, svc *permit.Service) {
	api := permitApi{userSvc: userSvc, academicSvc: academicSvc, svc: svc}

	pg := g.Group("/permits", jwt)
	pg.POST("", api.create, studentMiddleware())
	pg.GET("/mine", api.mine, studentMiddleware())
	pg.GET("", api.queryAll, adminMiddleware())
	pg.GET("/:id", api.retrieve)
	pg.PUT("/:id/sessions", api.addSessions, studentMiddleware())
	pg.POST("/:id/approve", api.approve, adminMiddleware())
	pg.POST("/:id/reject", api.reject, adminMiddleware())
}

func (api *permitApi) create(ctx echo.Context) error {
	var data permit.NewPermit
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPermit")
	}
	if err := data.Validate(core.Validate); err != nil {
		return err
	}
	student, err := contextStudent(ctx, api.userSvc, api.academicSvc)
	if err != nil {
		return err
	}
	p, err := api.svc.Create(ctx.Request().Context(), student, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *permitApi) mine(ctx echo.Context) error {
	student, err := contextStudent(ctx, api.userSvc, api.academicSvc)
	if err != nil {
		return err
	}
	permits, err := api.svc.QueryByStudent(ctx.Request().Context(), student.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, permits)
}

func (api *permitApi) queryAll(ctx echo.Context) error {
	permits, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, permits)
}

// retrieve is open to admins and to the owning student.
func (api *permitApi) retrieve(ctx echo.Context) error {
	p, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if !claims.IsAdmin {
		student, err := contextStudent(ctx, api.userSvc, api.academicSvc)
		if err != nil {
			return err
		}
		if p.StudentID != student.ID {
			return errHttpForbidden
		}
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *permitApi) addSessions(ctx echo.Context) error {
	var data CoveredSessionsRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CoveredSessionsRequest")
	}
	if err := core.Validate.Struct(&data); err != nil {
		return err
	}
	student, err := contextStudent(ctx, api.userSvc, api.academicSvc)
	if err != nil {
		return err
	}
	p, err := api.svc.AddCoveredSessions(ctx.Request().Context(), ctx.Param("id"), student, data.SessionIDs)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *permitApi) approve(ctx echo.Context) error {
	return api.decide(ctx, permit.StateApproved)
}

func (api *permitApi) reject(ctx echo.Context) error {
	return api.decide(ctx, permit.StateRejected)
}

func (api *permitApi) decide(ctx echo.Context, state permit.State) error {
	admin, err := contextAdmin(ctx, api.userSvc, api.academicSvc)
	if err != nil {
		return err
	}
	p, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	student, err := api.academicSvc.GetStudent(ctx.Request().Context(), p.StudentID)
	if err != nil {
		return err
	}
	if state == permit.StateApproved {
		p, err = api.svc.Approve(ctx.Request().Context(), p.ID, admin, student)
	} else {
		p, err = api.svc.Reject(ctx.Request().Context(), p.ID, admin, student)
	}
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}
