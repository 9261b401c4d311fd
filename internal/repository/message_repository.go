package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"realtime-chat/internal/domain"
)

type MessageRepository interface {
	// Create stores message with its sender as the first reader and returns
	// the stored message with sender, reactions and reads loaded.
	Create(ctx context.Context, message *domain.Message) (*domain.Message, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	// FindRecent returns the newest limit messages of room, oldest first.
	FindRecent(ctx context.Context, room string, limit int) ([]domain.Message, error)
	// AppendReaction adds one reaction entry. Returns domain.ErrNotFound when
	// the message does not exist.
	AppendReaction(ctx context.Context, messageID, userID uuid.UUID, reaction string) (*domain.Message, error)
	// AppendReaders adds reader to the readBy set of every existing message in
	// ids. Unknown ids and repeated reads are ignored. Returns the number of
	// new read entries.
	AppendReaders(ctx context.Context, ids []uuid.UUID, reader uuid.UUID) (int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func withDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Sender").
		Preload("Reactions", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Reads", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") })
}

func (r *messageRepository) Create(ctx context.Context, message *domain.Message) (*domain.Message, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(message).Error; err != nil {
			return err
		}
		read := &domain.MessageRead{
			MessageID: message.ID,
			UserID:    message.SenderID,
			ReadAt:    message.CreatedAt,
		}
		return tx.Create(read).Error
	})
	if err != nil {
		return nil, wrapError("create message", err)
	}
	return r.FindByID(ctx, message.ID)
}

func (r *messageRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	var message domain.Message
	err := withDetails(r.db.WithContext(ctx)).
		First(&message, "id = ?", id).Error
	if err != nil {
		return nil, wrapError("find message", err)
	}
	return &message, nil
}

func (r *messageRepository) FindRecent(ctx context.Context, room string, limit int) ([]domain.Message, error) {
	var messages []domain.Message
	err := withDetails(r.db.WithContext(ctx)).
		Where("room = ?", room).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, wrapError("find recent messages", err)
	}

	// newest-first from the query, callers want oldest-first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *messageRepository) AppendReaction(ctx context.Context, messageID, userID uuid.UUID, reaction string) (*domain.Message, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Message{}).Where("id = ?", messageID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Create(&domain.MessageReaction{
			MessageID: messageID,
			UserID:    userID,
			Reaction:  reaction,
		}).Error
	})
	if err != nil {
		return nil, wrapError("append reaction", err)
	}
	return r.FindByID(ctx, messageID)
}

func (r *messageRepository) AppendReaders(ctx context.Context, ids []uuid.UUID, reader uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var existing []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id IN ?", ids).
		Pluck("id", &existing).Error
	if err != nil {
		return 0, wrapError("find messages to mark read", err)
	}
	if len(existing) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	reads := make([]domain.MessageRead, 0, len(existing))
	for _, id := range existing {
		reads = append(reads, domain.MessageRead{MessageID: id, UserID: reader, ReadAt: now})
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&reads)
	if result.Error != nil {
		return 0, wrapError("mark messages read", result.Error)
	}
	return result.RowsAffected, nil
}
