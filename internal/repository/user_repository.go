package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"realtime-chat/internal/domain"
)

type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	// CreateIfAbsent inserts user unless a row with the same id or username
	// exists, then returns the stored row.
	CreateIfAbsent(ctx context.Context, user *domain.User) (*domain.User, error)
	UpdateLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, wrapError("find user", err)
	}
	return &user, nil
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).First(&user, "username = ?", username).Error; err != nil {
		return nil, wrapError("find user by username", err)
	}
	return &user, nil
}

func (r *userRepository) CreateIfAbsent(ctx context.Context, user *domain.User) (*domain.User, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(user).Error
	if err != nil {
		return nil, wrapError("create user", err)
	}

	stored, err := r.FindByID(ctx, user.ID)
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	// lost the race on username: another id owns it
	return nil, fmt.Errorf("%w: username %q already belongs to another user", domain.ErrPersistence, user.Username)
}

func (r *userRepository) UpdateLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Update("last_seen", at).Error
	return wrapError("update last seen", err)
}

// wrapError maps gorm errors onto the domain error kinds.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to %s: %w", op, domain.ErrNotFound)
	}
	return fmt.Errorf("failed to %s: %w: %w", op, domain.ErrPersistence, err)
}
