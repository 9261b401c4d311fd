package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"realtime-chat/internal/domain"
	"realtime-chat/internal/repository"
)

const maxUsernameLength = 100

type UserService interface {
	// FindOrCreate returns the user behind a verified identity, creating the
	// record on first sight.
	FindOrCreate(ctx context.Context, identity domain.Identity) (*domain.User, error)
	// Login returns the user named username, creating it if needed.
	Login(ctx context.Context, username string) (*domain.User, error)
	TouchLastSeen(ctx context.Context, userID uuid.UUID) error
}

type userService struct {
	userRepo repository.UserRepository
	logger   *zap.Logger
	sfGroup  singleflight.Group // collapses concurrent first connections of one user
	now      func() time.Time
}

func NewUserService(userRepo repository.UserRepository, logger *zap.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *userService) FindOrCreate(ctx context.Context, identity domain.Identity) (*domain.User, error) {
	// collapsed callers share this lookup, so one caller's cancellation
	// must not fail the others
	ctx = context.WithoutCancel(ctx)
	val, err, _ := s.sfGroup.Do("id:"+identity.UserID.String(), func() (any, error) {
		user, err := s.userRepo.FindByID(ctx, identity.UserID)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}

		s.logger.Info("Creating user on first connection",
			zap.String("userId", identity.UserID.String()),
			zap.String("username", identity.Username))
		return s.userRepo.CreateIfAbsent(ctx, &domain.User{
			ID:       identity.UserID,
			Username: identity.Username,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	return val.(*domain.User), nil
}

func (s *userService) Login(ctx context.Context, username string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username required", domain.ErrValidation)
	}
	if len(username) > maxUsernameLength {
		return nil, fmt.Errorf("%w: username too long", domain.ErrValidation)
	}

	ctx = context.WithoutCancel(ctx)
	val, err, _ := s.sfGroup.Do("name:"+username, func() (any, error) {
		user, err := s.userRepo.FindByUsername(ctx, username)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}

		user, err = s.userRepo.CreateIfAbsent(ctx, &domain.User{Username: username})
		if err == nil {
			return user, nil
		}
		// another instance created the same name in between
		return s.userRepo.FindByUsername(ctx, username)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to login: %w", err)
	}
	return val.(*domain.User), nil
}

func (s *userService) TouchLastSeen(ctx context.Context, userID uuid.UUID) error {
	if err := s.userRepo.UpdateLastSeen(ctx, userID, s.now().UTC()); err != nil {
		return fmt.Errorf("failed to update last seen: %w", err)
	}
	return nil
}
