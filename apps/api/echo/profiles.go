package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mkabenga/presencia/core/academic"
	"github.com/mkabenga/presencia/core/user"
)

// contextStudent resolves the authenticated user's student profile.
func contextStudent(ctx echo.Context, userSvc *user.Service, academicSvc *academic.Service) (academic.Student, error) {
	usr, err := getContextUser(ctx, userSvc)
	if err != nil {
		return academic.Student{}, errors.Wrap(err, "getting context user")
	}
	student, err := academicSvc.GetStudentByUser(ctx.Request().Context(), usr.ID)
	if err != nil {
		if errors.Cause(err) == academic.ErrStudentNotFound {
			return academic.Student{}, errHttpForbidden
		}
		return academic.Student{}, errors.Wrap(err, "getting student profile")
	}
	return student, nil
}

func contextTeacher(ctx echo.Context, userSvc *user.Service, academicSvc *academic.Service) (academic.Teacher, error) {
	usr, err := getContextUser(ctx, userSvc)
	if err != nil {
		return academic.Teacher{}, errors.Wrap(err, "getting context user")
	}
	teacher, err := academicSvc.GetTeacherByUser(ctx.Request().Context(), usr.ID)
	if err != nil {
		if errors.Cause(err) == academic.ErrTeacherNotFound {
			return academic.Teacher{}, errHttpForbidden
		}
		return academic.Teacher{}, errors.Wrap(err, "getting teacher profile")
	}
	return teacher, nil
}

func contextAdmin(ctx echo.Context, userSvc *user.Service, academicSvc *academic.Service) (academic.Admin, error) {
	usr, err := getContextUser(ctx, userSvc)
	if err != nil {
		return academic.Admin{}, errors.Wrap(err, "getting context user")
	}
	admin, err := academicSvc.GetAdminByUser(ctx.Request().Context(), usr.ID)
	if err != nil {
		if errors.Cause(err) == academic.ErrAdminNotFound {
			return academic.Admin{}, errHttpForbidden
		}
		return academic.Admin{}, errors.Wrap(err, "getting admin profile")
	}
	return admin, nil
}
