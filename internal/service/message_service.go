package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"realtime-chat/internal/domain"
	"realtime-chat/internal/repository"
)

// MaxHistory caps every history fetch.
const MaxHistory = 200

// SendInput is a validated-on-send message request.
type SendInput struct {
	SenderID uuid.UUID
	Room     string
	Content  string
	Type     domain.MessageType
}

type MessageService interface {
	Send(ctx context.Context, in SendInput) (*domain.Message, error)
	// Recent returns up to limit of the newest messages in room, oldest first.
	Recent(ctx context.Context, room string, limit int) ([]domain.Message, error)
	React(ctx context.Context, messageID string, userID uuid.UUID, reaction string) (*domain.Message, error)
	// MarkRead adds reader to readBy of each message. Malformed and unknown
	// ids are skipped.
	MarkRead(ctx context.Context, messageIDs []string, reader uuid.UUID) (int64, error)
}

type messageService struct {
	messageRepo repository.MessageRepository
	logger      *zap.Logger
}

func NewMessageService(messageRepo repository.MessageRepository, logger *zap.Logger) MessageService {
	return &messageService{
		messageRepo: messageRepo,
		logger:      logger,
	}
}

func (s *messageService) Send(ctx context.Context, in SendInput) (*domain.Message, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("%w: message content is empty", domain.ErrValidation)
	}
	if in.Type == "" {
		in.Type = domain.MessageTypeText
	}
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown message type %q", domain.ErrValidation, in.Type)
	}
	if in.Room == "" {
		in.Room = domain.GlobalRoom
	}

	message, err := s.messageRepo.Create(ctx, &domain.Message{
		Room:     in.Room,
		SenderID: in.SenderID,
		Content:  in.Content,
		Type:     in.Type,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	s.logger.Debug("Message stored",
		zap.String("messageId", message.ID.String()),
		zap.String("room", message.Room),
		zap.String("senderId", in.SenderID.String()))
	return message, nil
}

func (s *messageService) Recent(ctx context.Context, room string, limit int) ([]domain.Message, error) {
	if room == "" {
		room = domain.GlobalRoom
	}
	if limit <= 0 || limit > MaxHistory {
		limit = MaxHistory
	}
	return s.messageRepo.FindRecent(ctx, room, limit)
}

func (s *messageService) React(ctx context.Context, messageID string, userID uuid.UUID, reaction string) (*domain.Message, error) {
	if strings.TrimSpace(reaction) == "" {
		return nil, fmt.Errorf("%w: reaction is empty", domain.ErrValidation)
	}
	id, err := uuid.Parse(messageID)
	if err != nil {
		return nil, fmt.Errorf("message %q: %w", messageID, domain.ErrNotFound)
	}
	return s.messageRepo.AppendReaction(ctx, id, userID, reaction)
}

func (s *messageService) MarkRead(ctx context.Context, messageIDs []string, reader uuid.UUID) (int64, error) {
	ids := make([]uuid.UUID, 0, len(messageIDs))
	for _, raw := range messageIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return s.messageRepo.AppendReaders(ctx, ids, reader)
}
