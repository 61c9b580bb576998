package service

import (
	"context"
	"strings"
	"time"

	apperrors "coursepay-bot-backend/internal/common/errors"
	"coursepay-bot-backend/internal/common/logger"
	"coursepay-bot-backend/internal/common/validation"
	"coursepay-bot-backend/internal/features/user/models"
	"coursepay-bot-backend/internal/features/user/repository"
)

// Service runs the onboarding flow: NeedsEmail -> NeedsPhone -> Ready.
// The durable email/phone fields are the source of truth; state is derived
// from them on every call, so restarts cannot strand a user mid-flow.
type Service struct {
	repo repository.UserRepository
}

func NewService(repo repository.UserRepository) *Service {
	return &Service{repo: repo}
}

// Register creates the user on first contact. Idempotent by user id:
// re-running /start never regresses captured fields.
func (s *Service) Register(ctx context.Context, userID int64, username string) (*models.User, error) {
	user := &models.User{
		ID:           userID,
		Username:     username,
		RegisteredAt: time.Now().UTC(),
	}
	if err := s.repo.CreateIfAbsent(ctx, user); err != nil {
		return nil, apperrors.NewStoreError("create user", err)
	}

	stored, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, apperrors.NewStoreError("get user", err)
	}

	logger.Debug().
		Int64("user_id", userID).
		Str("state", string(stored.OnboardingState())).
		Msg("User registered")
	return stored, nil
}

// SubmitEmail validates and persists the user's email. On a validation
// failure nothing is written and the user stays in NeedsEmail.
func (s *Service) SubmitEmail(ctx context.Context, userID int64, raw string) (*models.User, error) {
	email := strings.TrimSpace(raw)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, apperrors.NewValidationError("email", err.Error())
	}

	if err := s.repo.SetEmail(ctx, userID, email); err != nil {
		if err == repository.ErrUserNotFound {
			return nil, apperrors.NewNotFoundError("user", userID)
		}
		return nil, apperrors.NewStoreError("set email", err)
	}

	return s.get(ctx, userID)
}

// SubmitContact persists the phone from a shared contact card. The card must
// belong to the sender; accepting someone else's contact would attach a
// stranger's phone to this account.
func (s *Service) SubmitContact(ctx context.Context, userID, contactOwnerID int64, phone string) (*models.User, error) {
	if contactOwnerID != userID {
		return nil, apperrors.NewValidationError("contact", "shared contact must be your own number")
	}
	if err := validation.ValidatePhone(phone); err != nil {
		return nil, apperrors.NewValidationError("phone", err.Error())
	}

	if err := s.repo.SetPhone(ctx, userID, strings.TrimSpace(phone)); err != nil {
		if err == repository.ErrUserNotFound {
			return nil, apperrors.NewNotFoundError("user", userID)
		}
		return nil, apperrors.NewStoreError("set phone", err)
	}

	return s.get(ctx, userID)
}

// Eligibility re-reads the durable row and reports whether a purchase may be
// initiated. Cached in-memory state is never trusted here.
func (s *Service) Eligibility(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.OnboardingState() != models.StateReady {
		return user, apperrors.NewNotEligibleError(user.MissingFields())
	}
	return user, nil
}

func (s *Service) get(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if err == repository.ErrUserNotFound {
			return nil, apperrors.NewNotFoundError("user", userID)
		}
		return nil, apperrors.NewStoreError("get user", err)
	}
	return user, nil
}
