package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tbourn/leadops-backend/internal/domain"
	"github.com/tbourn/leadops-backend/internal/observability"
	"github.com/tbourn/leadops-backend/internal/repo"
)

func TestComputeCategoryStatus(t *testing.T) {
	zr := func(statuses ...string) []domain.ZipRequest {
		out := make([]domain.ZipRequest, 0, len(statuses))
		for _, s := range statuses {
			out = append(out, domain.ZipRequest{Status: s})
		}
		return out
	}
	cases := []struct {
		name string
		in   []domain.ZipRequest
		want string
	}{
		{"none", nil, domain.CategoryInactive},
		{"all done", zr("done", "done"), domain.CategoryInactive},
		{"one pending", zr("done", "pending"), domain.CategoryActive},
		{"processing", zr("processing"), domain.CategoryActive},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, ComputeCategoryStatus(c.in))
		})
	}
}

func insertZip(t *testing.T, db *gorm.DB, categoryID, status string) *domain.ZipRequest {
	t.Helper()
	z := &domain.ZipRequest{ID: uuid.NewString(), ZipCode: "10115", Status: status, CategoryID: &categoryID}
	require.NoError(t, db.Create(z).Error)
	return z
}

func categoryStatus(t *testing.T, db *gorm.DB, id string) string {
	t.Helper()
	var c domain.Category
	require.NoError(t, db.First(&c, "id = ?", id).Error)
	return c.Status
}

func TestReconcile_Converges(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	busy, err := s.cats.Create(ctx, "Busy", domain.CategoryInactive)
	require.NoError(t, err)
	idle, err := s.cats.Create(ctx, "Idle", domain.CategoryActive)
	require.NoError(t, err)
	empty, err := s.cats.Create(ctx, "Empty", domain.CategoryActive)
	require.NoError(t, err)

	insertZip(t, s.db, busy.ID, domain.ZipStatusPending)
	insertZip(t, s.db, idle.ID, domain.ZipStatusDone)

	changed, err := s.cats.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, changed)
	assert.Equal(t, domain.CategoryActive, categoryStatus(t, s.db, busy.ID))
	assert.Equal(t, domain.CategoryInactive, categoryStatus(t, s.db, idle.ID))
	assert.Equal(t, domain.CategoryInactive, categoryStatus(t, s.db, empty.ID))

	changed, err = s.cats.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, changed, "second run without mutations writes nothing")
}

func TestReconcile_CompareAndSetSkipsStaleObservation(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	c, err := s.cats.Create(ctx, "Race", domain.CategoryInactive)
	require.NoError(t, err)

	// Another writer already moved it; a CAS from the stale value is a no-op.
	ok, err := repo.SetCategoryStatusIf(ctx, s.db, c.ID, domain.CategoryActive, domain.CategoryInactive)
	require.NoError(t, err)
	assert.False(t, ok)
}

// racingCategoryRepo runs mutate once, right after the zip statuses have
// been read and before any category is written.
type racingCategoryRepo struct {
	categoryStore
	mutate func()
}

func (r *racingCategoryRepo) CategoryZipStatuses(ctx context.Context, db *gorm.DB) ([]repo.CategoryZipStatus, error) {
	rows, err := r.categoryStore.CategoryZipStatuses(ctx, db)
	if f := r.mutate; f != nil {
		r.mutate = nil
		f()
	}
	return rows, err
}

func TestReconcile_SelfHealsAfterInterleavedMutation(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	cat, err := s.cats.Create(ctx, "Movers", domain.CategoryInactive)
	require.NoError(t, err)
	z := insertZip(t, s.db, cat.ID, domain.ZipStatusPending)

	racing := &racingCategoryRepo{mutate: func() {
		_, err := s.zips.UpdateStatus(ctx, z.ID, domain.ZipStatusDone)
		require.NoError(t, err)
	}}
	svc := NewCategoryService(s.db, racing)

	changed, err := svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	assert.Equal(t, domain.CategoryActive, categoryStatus(t, s.db, cat.ID), "stale observation wins this round")

	changed, err = svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	assert.Equal(t, domain.CategoryInactive, categoryStatus(t, s.db, cat.ID))

	changed, err = svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, changed)
}

type brokenCategoryRepo struct{ categoryStore }

func (brokenCategoryRepo) CategoryZipStatuses(context.Context, *gorm.DB) ([]repo.CategoryZipStatus, error) {
	return nil, errors.New("db gone")
}

func TestReconcileBestEffort_SwallowsAndCounts(t *testing.T) {
	db := newServiceDB(t)
	svc := NewCategoryService(db, brokenCategoryRepo{})
	before := testutil.ToFloat64(observability.ReconcileFailures)

	_, err := svc.Reconcile(context.Background())
	require.Error(t, err)

	svc.ReconcileBestEffort(context.Background())
	assert.Equal(t, before+1, testutil.ToFloat64(observability.ReconcileFailures))

	// List still answers when reconciliation fails.
	out, err := svc.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCategoryCreate_Validation(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	_, err := s.cats.Create(ctx, "   ", "")
	assert.True(t, IsValidation(err))

	_, err = s.cats.Create(ctx, strings.Repeat("é", maxCategoryNameRunes+1), "")
	assert.True(t, IsValidation(err))

	_, err = s.cats.Create(ctx, "ok", "paused")
	assert.True(t, IsValidation(err))

	c, err := s.cats.Create(ctx, "  Hair   Salons ", "")
	require.NoError(t, err)
	assert.Equal(t, "Hair Salons", c.Name)
	assert.Equal(t, domain.CategoryInactive, c.Status)

	_, err = s.cats.Create(ctx, "Hair Salons", "")
	assert.ErrorIs(t, err, ErrCategoryExists)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCategoryCreate_NFCCollides(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	_, err := s.cats.Create(ctx, "Caf\u00e9", "")
	require.NoError(t, err)
	_, err = s.cats.Create(ctx, "Cafe\u0301", "")
	assert.ErrorIs(t, err, ErrCategoryExists)
}

func TestCategoryList_ReconcilesAndFilters(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	b, err := s.cats.Create(ctx, "Bakeries", "")
	require.NoError(t, err)
	_, err = s.cats.Create(ctx, "Auto", "")
	require.NoError(t, err)
	insertZip(t, s.db, b.ID, domain.ZipStatusProcessing)

	all, err := s.cats.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Auto", all[0].Name)
	assert.Equal(t, "Bakeries", all[1].Name)

	active, err := s.cats.List(ctx, domain.CategoryActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, b.ID, active[0].ID)

	_, err = s.cats.List(ctx, "sleeping")
	assert.True(t, IsValidation(err))
}

func TestResolveOrCreate(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	c1, err := s.cats.ResolveOrCreate(ctx, "Florists")
	require.NoError(t, err)
	c2, err := s.cats.ResolveOrCreate(ctx, " Florists ")
	require.NoError(t, err)
	assert.Equal(t, c1.ID, c2.ID)

	_, err = s.cats.ResolveOrCreate(ctx, "")
	assert.True(t, IsValidation(err))
}

// lookupRacingCategoryRepo reports "not found" on the first lookup, as if another
// request created the category between lookup and insert.
type lookupRacingCategoryRepo struct {
	categoryStore
	lookups int
}

func (r *lookupRacingCategoryRepo) GetCategoryByName(ctx context.Context, db *gorm.DB, name string) (*domain.Category, error) {
	r.lookups++
	if r.lookups == 1 {
		return nil, gorm.ErrRecordNotFound
	}
	return repo.GetCategoryByName(ctx, db, name)
}

func TestResolveOrCreate_ToleratesConcurrentCreator(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	winner := &domain.Category{ID: "winner", Name: "Gyms", Status: domain.CategoryInactive}
	require.NoError(t, db.Create(winner).Error)

	r := &lookupRacingCategoryRepo{}
	svc := NewCategoryService(db, r)
	got, err := svc.ResolveOrCreate(ctx, "Gyms")
	require.NoError(t, err)
	assert.Equal(t, "winner", got.ID)
	assert.Equal(t, 2, r.lookups)
}

func TestCategoryGet(t *testing.T) {
	s := newTestServices(t)
	_, err := s.cats.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCategoryNotFound)
}
