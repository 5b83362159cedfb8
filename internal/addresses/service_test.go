package addresses

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nikul30701/E-Commerce-Plateform/pkg/db"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/db/dbtest"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/db/models"
	pkgerrors "github.com/Nikul30701/E-Commerce-Plateform/pkg/errors"
)

func newTestService(t *testing.T) (Service, *db.Client) {
	t.Helper()
	client := dbtest.Open(t)
	svc, err := NewService(NewRepository(client.DB()), client)
	require.NoError(t, err)
	return svc, client
}

func sampleInput() CreateInput {
	return CreateInput{
		FullName: "Ada Buyer",
		Street:   "1 Market St",
		City:     "Springfield",
		State:    "IL",
		Zipcode:  "62701",
		Country:  "US",
		Phone:    "+15550100",
	}
}

func countDefaults(t *testing.T, client *db.Client, userID uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, client.DB().Model(&models.Address{}).Where("user_id = ? AND is_default = ?", userID, true).Count(&n).Error)
	return n
}

func TestCreateFirstAddressBecomesDefault(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	first, err := svc.Create(ctx, userID, sampleInput())
	require.NoError(t, err)
	assert.True(t, first.IsDefault)

	second, err := svc.Create(ctx, userID, sampleInput())
	require.NoError(t, err)
	assert.False(t, second.IsDefault)
	assert.Equal(t, int64(1), countDefaults(t, client, userID))
}

func TestCreateDefaultClearsPreviousDefault(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	otherUser := uuid.New()

	first, err := svc.Create(ctx, userID, sampleInput())
	require.NoError(t, err)
	_, err = svc.Create(ctx, otherUser, sampleInput())
	require.NoError(t, err)

	input := sampleInput()
	input.IsDefault = true
	second, err := svc.Create(ctx, userID, input)
	require.NoError(t, err)
	assert.True(t, second.IsDefault)

	reloaded, err := svc.Get(ctx, userID, first.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsDefault)
	assert.Equal(t, int64(1), countDefaults(t, client, userID))
	assert.Equal(t, int64(1), countDefaults(t, client, otherUser))
}

func TestSetDefaultSwitchesExactlyOne(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	first, err := svc.Create(ctx, userID, sampleInput())
	require.NoError(t, err)
	second, err := svc.Create(ctx, userID, sampleInput())
	require.NoError(t, err)

	got, err := svc.SetDefault(ctx, userID, second.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDefault)

	list, err := svc.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
	assert.Equal(t, int64(1), countDefaults(t, client, userID))
}

func TestDeleteDefaultPromotesNewest(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	first, err := svc.Create(ctx, userID, sampleInput())
	require.NoError(t, err)
	older, err := svc.Create(ctx, userID, sampleInput())
	require.NoError(t, err)
	newer, err := svc.Create(ctx, userID, sampleInput())
	require.NoError(t, err)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, client.DB().Model(&models.Address{}).Where("id = ?", older.ID).Update("created_at", base).Error)
	require.NoError(t, client.DB().Model(&models.Address{}).Where("id = ?", newer.ID).Update("created_at", base.Add(time.Hour)).Error)

	require.NoError(t, svc.Delete(ctx, userID, first.ID))

	promoted, err := svc.Get(ctx, userID, newer.ID)
	require.NoError(t, err)
	assert.True(t, promoted.IsDefault)
	assert.Equal(t, int64(1), countDefaults(t, client, userID))
}

func TestAddressesAreScopedToOwner(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	owner := uuid.New()
	intruder := uuid.New()

	addr, err := svc.Create(ctx, owner, sampleInput())
	require.NoError(t, err)

	_, err = svc.Get(ctx, intruder, addr.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	name := "Mallory"
	_, err = svc.Update(ctx, intruder, addr.ID, UpdateInput{FullName: &name})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	err = svc.Delete(ctx, intruder, addr.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestUpdateRejectsBlankField(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	addr, err := svc.Create(ctx, userID, sampleInput())
	require.NoError(t, err)

	blank := "  "
	_, err = svc.Update(ctx, userID, addr.ID, UpdateInput{City: &blank})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	city := "Shelbyville"
	updated, err := svc.Update(ctx, userID, addr.ID, UpdateInput{City: &city})
	require.NoError(t, err)
	assert.Equal(t, "Shelbyville", updated.City)
	assert.True(t, updated.IsDefault)
}
