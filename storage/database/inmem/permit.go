package inmemdb

import (
	"context"
	"sort"

	"github.com/mkabenga/presencia/core/permit"
)

type permitRepository struct {
	db *DB
}

var _ permit.Repository = (*permitRepository)(nil) // interface compliance check

func NewPermitRepository(db *DB) *permitRepository {
	return &permitRepository{db: db}
}

func clone(p permit.Permit) permit.Permit {
	p.CoveredSessionIDs = append([]string(nil), p.CoveredSessionIDs...)
	return p
}

func (repo *permitRepository) CreatePermit(ctx context.Context, p permit.Permit) (permit.Permit, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	stored := clone(p)
	repo.db.permits[p.ID] = &stored
	return p, nil
}

func (repo *permitRepository) GetPermitByID(ctx context.Context, id string) (permit.Permit, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if p, ok := repo.db.permits[id]; ok {
		return clone(*p), nil
	}
	return permit.Permit{}, permit.ErrNotFound
}

func (repo *permitRepository) query(match func(permit.Permit) bool) []permit.Permit {
	var permits []permit.Permit
	for _, p := range repo.db.permits {
		if match(*p) {
			permits = append(permits, clone(*p))
		}
	}
	sort.Slice(permits, func(i, j int) bool { return permits[i].RequestedAt.After(permits[j].RequestedAt) })
	return permits
}

func (repo *permitRepository) QueryPermitsByStudent(ctx context.Context, studentID string) ([]permit.Permit, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.query(func(p permit.Permit) bool { return p.StudentID == studentID }), nil
}

func (repo *permitRepository) QueryAllPermits(ctx context.Context) ([]permit.Permit, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.query(func(permit.Permit) bool { return true }), nil
}

func (repo *permitRepository) SetPermitState(ctx context.Context, id string, state permit.State, approverID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	p, ok := repo.db.permits[id]
	if !ok {
		return permit.ErrNotFound
	}
	p.State = state
	p.ApproverID = approverID
	return nil
}

func (repo *permitRepository) AddPermitSessions(ctx context.Context, id string, sessionIDs []string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	p, ok := repo.db.permits[id]
	if !ok {
		return permit.ErrNotFound
	}
	for _, sessionID := range sessionIDs {
		if !p.Covers(sessionID) {
			p.CoveredSessionIDs = append(p.CoveredSessionIDs, sessionID)
		}
	}
	return nil
}
