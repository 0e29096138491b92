package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mkabenga/presencia/core"
	"github.com/mkabenga/presencia/core/academic"
	"github.com/mkabenga/presencia/core/user"
)

type academicApi struct {
	userSvc *user.Service
	svc     *academic.Service
}

func registerAcademicAPI(g *echo.Group, jwt echo.MiddlewareFunc, userSvc *user.Service, svc *academic.Service) {
	api := academicApi{userSvc: userSvc, svc: svc}

	admin := adminMiddleware()

	pg := g.Group("/programs", jwt)
	pg.POST("", api.createProgram, admin)
	pg.GET("", api.queryPrograms)
	pg.POST("/:id/terms", api.createTerm, admin)
	pg.GET("/:id/terms", api.queryTerms)

	cg := g.Group("/courses", jwt)
	cg.POST("", api.createCourse, admin)
	cg.GET("", api.queryCourses)

	og := g.Group("/offerings", jwt)
	og.POST("", api.createOffering, admin)
	og.GET("/mine", api.myOfferings)
	og.GET("/:id", api.retrieveOffering)
	og.POST("/:id/assignments", api.assignTeacher, admin)
	og.DELETE("/:id/assignments/:teacherID", api.unassignTeacher, admin)
	og.POST("/:id/enrollments", api.enrollStudent, admin)
	og.GET("/:id/students", api.enrolledStudents, teacherMiddleware())

	sg := g.Group("/students", jwt)
	sg.POST("", api.createStudent, admin)
	sg.GET("/:id", api.retrieveStudent, admin)

	tg := g.Group("/teachers", jwt)
	tg.POST("", api.createTeacher, admin)

	ag := g.Group("/admins", jwt)
	ag.POST("", api.createAdmin, admin)
}

// Catalog handlers

func (api *academicApi) createProgram(ctx echo.Context) error {
	var data academic.NewProgram
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewProgram")
	}
	if err := data.Validate(core.Validate); err != nil {
		return err
	}
	p, err := api.svc.CreateProgram(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *academicApi) queryPrograms(ctx echo.Context) error {
	progs, err := api.svc.QueryPrograms(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying programs")
	}
	return ctx.JSON(http.StatusOK, progs)
}

func (api *academicApi) createTerm(ctx echo.Context) error {
	var data academic.NewTerm
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTerm")
	}
	data.ProgramID = ctx.Param("id")
	if err := data.Validate(core.Validate); err != nil {
		return err
	}
	t, err := api.svc.CreateTerm(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *academicApi) queryTerms(ctx echo.Context) error {
	terms, err := api.svc.QueryTerms(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying terms")
	}
	return ctx.JSON(http.StatusOK, terms)
}

func (api *academicApi) createCourse(ctx echo.Context) error {
	var data academic.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(core.Validate); err != nil {
		return err
	}
	c, err := api.svc.CreateCourse(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *academicApi) queryCourses(ctx echo.Context) error {
	courses, err := api.svc.QueryCourses(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	return ctx.JSON(http.StatusOK, courses)
}

// Offering handlers

func (api *academicApi) createOffering(ctx echo.Context) error {
	var data academic.NewOffering
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewOffering")
	}
	if err := data.Validate(core.Validate); err != nil {
		return err
	}
	off, err := api.svc.CreateOffering(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, off)
}

func (api *academicApi) retrieveOffering(ctx echo.Context) error {
	off, err := api.svc.GetOffering(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, off)
}

// myOfferings lists the offerings relevant to the caller: a teacher sees the
// ones they are assigned to, a student the ones of their current term.
func (api *academicApi) myOfferings(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	switch {
	case claims.IsTeacher:
		teacher, err := contextTeacher(ctx, api.userSvc, api.svc)
		if err != nil {
			return err
		}
		offs, err := api.svc.TeacherOfferings(ctx.Request().Context(), teacher.ID)
		if err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, offs)
	case claims.IsStudent:
		student, err := contextStudent(ctx, api.userSvc, api.svc)
		if err != nil {
			return err
		}
		offs, err := api.svc.StudentOfferings(ctx.Request().Context(), student)
		if err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, offs)
	}
	return errHttpForbidden
}

func (api *academicApi) assignTeacher(ctx echo.Context) error {
	var data struct {
		TeacherID string `json:"teacher_id" validate:"required,uuid4"`
	}
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding teacher assignment")
	}
	if err := core.Validate.Struct(&data); err != nil {
		return err
	}
	ta, err := api.svc.AssignTeacher(ctx.Request().Context(), data.TeacherID, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, ta)
}

func (api *academicApi) unassignTeacher(ctx echo.Context) error {
	err := api.svc.UnassignTeacher(ctx.Request().Context(), ctx.Param("teacherID"), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *academicApi) enrollStudent(ctx echo.Context) error {
	var data struct {
		StudentID string `json:"student_id" validate:"required,uuid4"`
	}
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding enrollment")
	}
	if err := core.Validate.Struct(&data); err != nil {
		return err
	}
	e, err := api.svc.Enroll(ctx.Request().Context(), data.StudentID, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *academicApi) enrolledStudents(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	offeringID := ctx.Param("id")
	if !claims.IsAdmin {
		teacher, err := contextTeacher(ctx, api.userSvc, api.svc)
		if err != nil {
			return err
		}
		assigned, err := api.svc.IsTeacherAssigned(ctx.Request().Context(), teacher.ID, offeringID)
		if err != nil {
			return err
		}
		if !assigned {
			return errHttpForbidden
		}
	}
	students, err := api.svc.EnrolledStudents(ctx.Request().Context(), offeringID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, students)
}

// Profile handlers

func (api *academicApi) createStudent(ctx echo.Context) error {
	var data academic.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(core.Validate); err != nil {
		return err
	}
	s, err := api.svc.CreateStudent(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *academicApi) retrieveStudent(ctx echo.Context) error {
	s, err := api.svc.GetStudent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *academicApi) createTeacher(ctx echo.Context) error {
	var data academic.NewTeacher
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTeacher")
	}
	if err := data.Validate(core.Validate); err != nil {
		return err
	}
	t, err := api.svc.CreateTeacher(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *academicApi) createAdmin(ctx echo.Context) error {
	var data academic.NewAdmin
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAdmin")
	}
	if err := data.Validate(core.Validate); err != nil {
		return err
	}
	a, err := api.svc.CreateAdmin(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, a)
}
