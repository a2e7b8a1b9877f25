package sellers

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/curatedly/curatedly-backend/pkg/db"
	"github.com/curatedly/curatedly-backend/pkg/db/models"
	pkgerrors "github.com/curatedly/curatedly-backend/pkg/errors"
	"github.com/curatedly/curatedly-backend/pkg/logger"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,38}[a-z0-9]$`)

type repository interface {
	Create(ctx context.Context, seller *models.Seller) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Seller, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Seller, error)
	FindBySlug(ctx context.Context, slug string) (*models.Seller, error)
}

// RegisterInput is the storefront signup payload.
type RegisterInput struct {
	UserID      uuid.UUID
	Slug        string
	DisplayName string
	Handle      *string
	Email       *string
}

type Service struct {
	repo repository
	logg *logger.Logger
}

func NewService(repo repository, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("seller repository required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{repo: repo, logg: logg}, nil
}

// NormalizeSlug lowercases and trims a requested slug.
func NormalizeSlug(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Register creates the storefront for userID. The slug lookup only rejects
// early; the unique index decides races.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*models.Seller, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	slug := NormalizeSlug(input.Slug)
	if !slugPattern.MatchString(slug) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug must be 3-40 characters of a-z, 0-9 or '-'")
	}
	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "display name required")
	}

	if _, err := s.repo.FindByUserID(ctx, input.UserID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "storefront already exists for user")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup seller by user")
	}

	if _, err := s.repo.FindBySlug(ctx, slug); err == nil {
		return nil, slugTakenError(slug)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup seller by slug")
	}

	seller := &models.Seller{
		UserID:      input.UserID,
		Slug:        slug,
		DisplayName: displayName,
		Handle:      trimmedOrNil(input.Handle),
		Email:       trimmedOrNil(input.Email),
	}
	if err := s.repo.Create(ctx, seller); err != nil {
		switch {
		case isSlugViolation(err):
			return nil, slugTakenError(slug)
		case db.IsUniqueViolation(err, ""):
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "storefront already exists for user")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create seller")
	}

	s.logg.Info(s.logg.WithSellerID(ctx, seller.ID.String()), "seller registered")
	return seller, nil
}

// GetByUserID resolves the storefront owned by the authenticated user.
func (s *Service) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Seller, error) {
	seller, err := s.repo.FindByUserID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller")
	}
	return seller, nil
}

func slugTakenError(slug string) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "slug already taken").WithDetails(map[string]string{"slug": slug})
}

func isSlugViolation(err error) bool {
	return db.IsUniqueViolation(err, "ux_sellers_slug") || db.IsUniqueViolation(err, "sellers.slug")
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
