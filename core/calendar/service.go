package calendar

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mkabenga/presencia/core"
)

var (
	// errors
	ErrNotFound   = errors.New("special day not found")
	ErrDateExists = errors.New("a special day already exists on this date")
)

type (
	Repository interface {
		CreateSpecialDay(ctx context.Context, d SpecialDay) (SpecialDay, error)
		GetSpecialDayByDate(ctx context.Context, date time.Time) (SpecialDay, error)
		QueryAllSpecialDays(ctx context.Context) ([]SpecialDay, error)
		// QuerySpecialDaysInRange returns affecting special days within
		// [start, end], ordered by date.
		QuerySpecialDaysInRange(ctx context.Context, start, end time.Time) ([]SpecialDay, error)
		DeleteSpecialDay(ctx context.Context, id string) error
	}

	// Service is the special-day registry: the hard gate consulted before any
	// session is opened or registration accepted.
	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, nd NewSpecialDay, createdBy string) (SpecialDay, error) {
	affects := true
	if nd.AffectsAttendance != nil {
		affects = *nd.AffectsAttendance
	}
	d := SpecialDay{
		ID:                uuid.NewString(),
		Date:              nd.date,
		Kind:              nd.Kind,
		Description:       nd.Description,
		AffectsAttendance: affects,
		CreatedBy:         createdBy,
		CreatedAt:         core.NowFunc().UTC(),
	}
	d, err := svc.repo.CreateSpecialDay(ctx, d)
	if errors.Cause(err) == ErrDateExists {
		return SpecialDay{}, core.NewValidationError(err, core.FieldError{Field: "date", Error: err.Error()})
	}
	return d, err
}

func (svc *Service) QueryAll(ctx context.Context) ([]SpecialDay, error) {
	return svc.repo.QueryAllSpecialDays(ctx)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteSpecialDay(ctx, id)
}

// IsSpecialDay reports whether date has a special day that affects attendance.
func (svc *Service) IsSpecialDay(ctx context.Context, date time.Time) (bool, error) {
	d, err := svc.repo.GetSpecialDayByDate(ctx, core.CivilDate(date))
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return d.AffectsAttendance, nil
}

// CheckDate is the gate form of IsSpecialDay: it returns a *BlockedError
// (carrying the day's kind and description) when class activity must be
// rejected on date, and nil otherwise. Callers must propagate the error,
// never skip silently.
func (svc *Service) CheckDate(ctx context.Context, date time.Time) error {
	d, err := svc.repo.GetSpecialDayByDate(ctx, core.CivilDate(date))
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return nil
		}
		return err
	}
	if !d.AffectsAttendance {
		return nil
	}
	return &BlockedError{Kind: d.Kind, Description: d.Description}
}

func (svc *Service) SpecialDaysInRange(ctx context.Context, start, end time.Time) ([]SpecialDay, error) {
	return svc.repo.QuerySpecialDaysInRange(ctx, core.CivilDate(start), core.CivilDate(end))
}
