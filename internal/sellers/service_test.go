package sellers

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/curatedly/curatedly-backend/pkg/db/dbtest"
	"github.com/curatedly/curatedly-backend/pkg/db/models"
	pkgerrors "github.com/curatedly/curatedly-backend/pkg/errors"
	"github.com/curatedly/curatedly-backend/pkg/logger"
)

func newTestService(t *testing.T) (*Service, *Repository) {
	t.Helper()
	repo := NewRepository(dbtest.Open(t))
	svc, err := NewService(repo, logger.Nop())
	require.NoError(t, err)
	return svc, repo
}

func TestRegisterNormalizesSlug(t *testing.T) {
	svc, _ := newTestService(t)
	handle := "  @mia "

	seller, err := svc.Register(context.Background(), RegisterInput{
		UserID:      uuid.New(),
		Slug:        "  Mia-Picks ",
		DisplayName: "Mia",
		Handle:      &handle,
	})
	require.NoError(t, err)
	assert.Equal(t, "mia-picks", seller.Slug)
	require.NotNil(t, seller.Handle)
	assert.Equal(t, "@mia", *seller.Handle)
	assert.Nil(t, seller.Email)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)
	cases := map[string]RegisterInput{
		"short slug":      {UserID: uuid.New(), Slug: "ab", DisplayName: "x"},
		"bad chars":       {UserID: uuid.New(), Slug: "mia_picks", DisplayName: "x"},
		"leading hyphen":  {UserID: uuid.New(), Slug: "-mia", DisplayName: "x"},
		"no display name": {UserID: uuid.New(), Slug: "mia-picks", DisplayName: "  "},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), input)
			assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
}

func TestRegisterRejectsTakenSlug(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterInput{UserID: uuid.New(), Slug: "taken", DisplayName: "First"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{UserID: uuid.New(), Slug: "TAKEN", DisplayName: "Second"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

func TestRegisterRejectsSecondStorefrontForUser(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	_, err := svc.Register(ctx, RegisterInput{UserID: userID, Slug: "first", DisplayName: "First"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{UserID: userID, Slug: "second", DisplayName: "Second"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

// racingRepo reports the slug as free and then loses the insert race.
type racingRepo struct {
	*Repository
}

func (r racingRepo) FindBySlug(context.Context, string) (*models.Seller, error) {
	return nil, gorm.ErrRecordNotFound
}

func TestRegisterMapsUniqueViolationToConflict(t *testing.T) {
	_, repo := newTestService(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &models.Seller{UserID: uuid.New(), Slug: "raced", DisplayName: "Winner"}))

	svc, err := NewService(racingRepo{repo}, logger.Nop())
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{UserID: uuid.New(), Slug: "raced", DisplayName: "Loser"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
}

func TestGetByUserIDNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.GetByUserID(context.Background(), uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
	assert.False(t, errors.Is(err, gorm.ErrRecordNotFound))
}
