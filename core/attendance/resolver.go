package attendance

import (
	"time"

	"github.com/pkg/errors"

	"github.com/mkabenga/presencia/core"
	"github.com/mkabenga/presencia/core/permit"
)

// Resolver classifies a registration against its session's schedule.
//
// Precedence: an approved permit covering the session wins over everything;
// a zero RecordedAt means the record was synthesized for a no-show; otherwise
// the punctuality delta against the scheduled start decides PRESENT vs LATE.
type Resolver struct {
	loc       *time.Location
	tolerance time.Duration
	log       core.Logger
}

func NewResolver(loc *time.Location, toleranceMinutes int, log core.Logger) *Resolver {
	return &Resolver{loc: loc, tolerance: time.Duration(toleranceMinutes) * time.Minute, log: log}
}

// Resolve returns the state for reg. It never fails: if the schedule data is
// unusable it logs and falls back to PRESENT, never penalizing the student
// for a bookkeeping error.
func (r *Resolver) Resolve(reg Registration, sess Session, p *permit.Permit) State {
	if p != nil && p.State == permit.StateApproved && p.Covers(sess.ID) {
		return StateExcused
	}
	if reg.RecordedAt.IsZero() {
		return StateAbsent
	}
	state, err := r.classify(reg.RecordedAt, sess)
	if err != nil {
		r.log.Error("resolving attendance state, defaulting to PRESENT", errors.Wrapf(err, "registration %s", reg.ID))
		return StatePresent
	}
	return state
}

func (r *Resolver) classify(recordedAt time.Time, sess Session) (State, error) {
	if sess.Date.IsZero() {
		return "", errors.New("session has no date")
	}
	scheduled := core.CombineCivil(sess.Date, sess.StartTime)
	actual := core.NormalizeCivil(recordedAt, r.loc)
	if actual.Sub(scheduled) <= r.tolerance {
		return StatePresent, nil
	}
	return StateLate, nil
}
