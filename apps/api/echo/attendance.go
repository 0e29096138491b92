package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mkabenga/presencia/core"
	"github.com/mkabenga/presencia/core/academic"
	"github.com/mkabenga/presencia/core/attendance"
	"github.com/mkabenga/presencia/core/user"
)

type (
	ScanRequest struct {
		OfferingID string   `json:"offering_id" validate:"required,uuid4"`
		Credential string   `json:"credential" validate:"required"`
		Latitude   *float64 `json:"latitude"`
		Longitude  *float64 `json:"longitude"`
	}

	LinkPermitRequest struct {
		PermitID string `json:"permit_id" validate:"required,uuid4"`
	}
)

type attendanceApi struct {
	userSvc     *user.Service
	academicSvc *academic.Service
	svc         *attendance.Service
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, userSvc *user.Service, academicSvc *academic.Service, svc *attendance.Service) {
	api := attendanceApi{userSvc: userSvc, academicSvc: academicSvc, svc: svc}

	sg := g.Group("/sessions", jwt)
	sg.POST("", api.openSession, teacherMiddleware())
	sg.GET("", api.sessionsByOffering, teacherMiddleware())
	sg.GET("/:id", api.retrieveSession, teacherMiddleware())
	sg.GET("/:id/roster", api.sessionRoster, teacherMiddleware())

	rg := g.Group("/registrations", jwt)
	rg.POST("", api.registerByQR, studentMiddleware())
	rg.GET("/mine", api.myHistory, studentMiddleware())
	rg.PUT("/:id/permit", api.linkPermit, studentMiddleware())
	rg.POST("/:id/resolve", api.resolveRegistration, adminMiddleware())

	g.GET("/students/me/badge", api.myBadge, jwt, studentMiddleware())

	cg := g.Group("/credentials", jwt, adminMiddleware())
	cg.GET("/:studentID", api.studentCredential)
	cg.GET("/:studentID/badge", api.studentBadge)
}

type CredentialResponse struct {
	StudentID         string `json:"student_id"`
	InstitutionalCode string `json:"institutional_code"`
	Name              string `json:"name,omitempty"`
	Credential        string `json:"credential"`
}

func (api *attendanceApi) openSession(ctx echo.Context) error {
	var data attendance.NewSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if err := data.Validate(core.Validate); err != nil {
		return err
	}
	teacher, err := contextTeacher(ctx, api.userSvc, api.academicSvc)
	if err != nil {
		return err
	}
	sess, err := api.svc.OpenSession(ctx.Request().Context(), teacher, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sess)
}

func (api *attendanceApi) sessionsByOffering(ctx echo.Context) error {
	offeringID := ctx.QueryParam("offering_id")
	if offeringID == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "offering_id", Error: "this query parameter is required"})
	}
	if err := api.checkOfferingAccess(ctx, offeringID); err != nil {
		return err
	}
	sessions, err := api.svc.SessionsByOffering(ctx.Request().Context(), offeringID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *attendanceApi) retrieveSession(ctx echo.Context) error {
	sess, err := api.svc.GetSession(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	if err = api.checkOfferingAccess(ctx, sess.OfferingID); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *attendanceApi) sessionRoster(ctx echo.Context) error {
	sess, err := api.svc.GetSession(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	if err = api.checkOfferingAccess(ctx, sess.OfferingID); err != nil {
		return err
	}
	roster, err := api.svc.SessionRoster(ctx.Request().Context(), sess.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, roster)
}

// checkOfferingAccess lets admins through and requires teachers to be
// assigned to the offering.
func (api *attendanceApi) checkOfferingAccess(ctx echo.Context, offeringID string) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if claims.IsAdmin {
		return nil
	}
	teacher, err := contextTeacher(ctx, api.userSvc, api.academicSvc)
	if err != nil {
		return err
	}
	assigned, err := api.academicSvc.IsTeacherAssigned(ctx.Request().Context(), teacher.ID, offeringID)
	if err != nil {
		return err
	}
	if !assigned {
		return errHttpForbidden
	}
	return nil
}

func (api *attendanceApi) registerByQR(ctx echo.Context) error {
	var data ScanRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ScanRequest")
	}
	if err := core.Validate.Struct(&data); err != nil {
		return err
	}
	student, err := contextStudent(ctx, api.userSvc, api.academicSvc)
	if err != nil {
		return err
	}
	reg, err := api.svc.RegisterByQR(ctx.Request().Context(), student, data.OfferingID, data.Credential, data.Latitude, data.Longitude)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, reg)
}

func (api *attendanceApi) myHistory(ctx echo.Context) error {
	student, err := contextStudent(ctx, api.userSvc, api.academicSvc)
	if err != nil {
		return err
	}
	regs, err := api.svc.StudentHistory(ctx.Request().Context(), student.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, regs)
}

func (api *attendanceApi) linkPermit(ctx echo.Context) error {
	var data LinkPermitRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LinkPermitRequest")
	}
	if err := core.Validate.Struct(&data); err != nil {
		return err
	}
	student, err := contextStudent(ctx, api.userSvc, api.academicSvc)
	if err != nil {
		return err
	}
	reg, err := api.svc.LinkPermit(ctx.Request().Context(), student, ctx.Param("id"), data.PermitID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, reg)
}

func (api *attendanceApi) resolveRegistration(ctx echo.Context) error {
	reg, err := api.svc.ResolveRegistration(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, reg)
}

// myBadge renders the caller's QR badge as a PNG. The payload is stable for
// a given student, so clients may cache the image.
func (api *attendanceApi) myBadge(ctx echo.Context) error {
	student, err := contextStudent(ctx, api.userSvc, api.academicSvc)
	if err != nil {
		return err
	}
	png, err := attendance.CredentialPNG(attendance.Credential{
		StudentID:         student.ID,
		InstitutionalCode: student.InstitutionalCode,
		DisplayName:       student.Name,
	}, 512)
	if err != nil {
		return errors.Wrap(err, "rendering badge")
	}
	return ctx.Blob(http.StatusOK, "image/png", png)
}

func (api *attendanceApi) studentCred(ctx echo.Context) (attendance.Credential, error) {
	student, err := api.academicSvc.GetStudent(ctx.Request().Context(), ctx.Param("studentID"))
	if err != nil {
		return attendance.Credential{}, err
	}
	return attendance.Credential{
		StudentID:         student.ID,
		InstitutionalCode: student.InstitutionalCode,
		DisplayName:       student.Name,
	}, nil
}

// studentCredential returns the encoded badge payload for any student, for
// admins issuing or re-issuing credentials.
func (api *attendanceApi) studentCredential(ctx echo.Context) error {
	cred, err := api.studentCred(ctx)
	if err != nil {
		return err
	}
	enc, err := attendance.EncodeCredential(cred)
	if err != nil {
		return errors.Wrap(err, "encoding credential")
	}
	return ctx.JSON(http.StatusOK, CredentialResponse{
		StudentID:         cred.StudentID,
		InstitutionalCode: cred.InstitutionalCode,
		Name:              cred.DisplayName,
		Credential:        enc,
	})
}

func (api *attendanceApi) studentBadge(ctx echo.Context) error {
	cred, err := api.studentCred(ctx)
	if err != nil {
		return err
	}
	png, err := attendance.CredentialPNG(cred, 512)
	if err != nil {
		return errors.Wrap(err, "rendering badge")
	}
	return ctx.Blob(http.StatusOK, "image/png", png)
}
