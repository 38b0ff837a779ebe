package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"propertyhub/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProperty(title, city string) *models.Property {
	return &models.Property{
		Title:  title,
		Price:  "4500000",
		City:   city,
		State:  "Maharashtra",
		Images: []string{"/uploads/properties/a.jpg", "/uploads/properties/b.jpg"},
	}
}

func TestPropertyRepository_CreateAndGet(t *testing.T) {
	repo := NewPropertyRepository(setupSQLite(t))
	ctx := context.Background()

	p := newProperty("Sea view flat", "Mumbai")
	p.Amenities = []string{"Gym", "Pool"}
	require.NoError(t, repo.Create(ctx, p))
	assert.NotZero(t, p.ID)
	assert.Equal(t, uint(1), p.Version)

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sea view flat", got.Title)
	assert.Equal(t, []string{"/uploads/properties/a.jpg", "/uploads/properties/b.jpg"}, []string(got.Images))
	assert.Equal(t, []string{"Gym", "Pool"}, []string(got.Amenities))

	_, err = repo.GetByID(ctx, 999)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
	assert.EqualError(t, err, "Property not found")
}

func TestPropertyRepository_ListFiltersAndOrder(t *testing.T) {
	db := setupSQLite(t)
	repo := NewPropertyRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, city := range []string{"Pune", "Mumbai", "pune"} {
		p := newProperty("p"+city, city)
		p.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, repo.Create(ctx, p))
	}

	all, err := repo.List(ctx, PropertyFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "ppune", all[0].Title, "newest first")
	assert.Equal(t, "pPune", all[2].Title)

	pune, err := repo.List(ctx, PropertyFilter{City: "PUNE"})
	require.NoError(t, err)
	assert.Len(t, pune, 2)

	page, err := repo.List(ctx, PropertyFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "pMumbai", page[0].Title)

	none, err := repo.List(ctx, PropertyFilter{City: "Delhi"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestPropertyRepository_UpdateVersioning(t *testing.T) {
	repo := NewPropertyRepository(setupSQLite(t))
	ctx := context.Background()

	p := newProperty("Villa", "Goa")
	require.NoError(t, repo.Create(ctx, p))

	p.Price = "9000000"
	p.Images = []string{"/uploads/properties/b.jpg"}
	one := uint(1)
	require.NoError(t, repo.Update(ctx, p, &one))
	assert.Equal(t, uint(2), p.Version)

	stored, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "9000000", stored.Price)
	assert.Equal(t, []string{"/uploads/properties/b.jpg"}, []string(stored.Images))
	assert.Equal(t, uint(2), stored.Version)

	stale := *stored
	stale.Price = "1"
	err = repo.Update(ctx, &stale, &one)
	assert.True(t, models.IsCode(err, models.CodeConflict))
	assert.Equal(t, uint(2), stale.Version, "version is restored on conflict")

	// Without an expected version the last writer wins.
	stale.Price = "2"
	require.NoError(t, repo.Update(ctx, &stale, nil))
	assert.Equal(t, uint(3), stale.Version)

	missing := newProperty("ghost", "Goa")
	missing.ID = 404
	err = repo.Update(ctx, missing, nil)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPropertyRepository_UpdateConflict_Postgres(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPropertyRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "properties" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	p := newProperty("Villa", "Goa")
	p.ID = 5
	p.Version = 3
	three := uint(3)
	err := repo.Update(context.Background(), p, &three)
	assert.True(t, models.IsCode(err, models.CodeConflict))
	assert.Equal(t, uint(3), p.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPropertyRepository_UpdateDatabaseError(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPropertyRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "properties" SET`)).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	p := newProperty("Villa", "Goa")
	p.ID = 5
	err := repo.Update(context.Background(), p, nil)
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeInternal))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPropertyRepository_Delete(t *testing.T) {
	repo := NewPropertyRepository(setupSQLite(t))
	ctx := context.Background()

	p := newProperty("Plot", "Nashik")
	require.NoError(t, repo.Create(ctx, p))

	require.NoError(t, repo.Delete(ctx, p.ID))
	_, err := repo.GetByID(ctx, p.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	assert.True(t, models.IsCode(repo.Delete(ctx, p.ID), models.CodeNotFound))
}
