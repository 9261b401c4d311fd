package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageType defines the type of message
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
)

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile, MessageTypeSystem:
		return true
	}
	return false
}

// Message represents a chat message. Content never changes after create;
// reactions and reads only grow.
type Message struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Room      string            `gorm:"type:varchar(255);not null;index:idx_messages_room_created" json:"room"`
	SenderID  uuid.UUID         `gorm:"type:uuid;not null;index" json:"senderId"`
	Sender    User              `gorm:"foreignKey:SenderID" json:"sender"`
	Content   string            `gorm:"type:text;not null" json:"content"`
	Type      MessageType       `gorm:"type:varchar(20);not null;default:'text'" json:"type"`
	Reactions []MessageReaction `gorm:"foreignKey:MessageID" json:"reactions"`
	Reads     []MessageRead     `gorm:"foreignKey:MessageID" json:"reads"`
	CreatedAt time.Time         `gorm:"not null;index:idx_messages_room_created" json:"createdAt"`
	UpdatedAt time.Time         `gorm:"not null" json:"updatedAt"`
}

func (Message) TableName() string {
	return "messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// ReaderIDs returns the readBy set in the order readers were added.
func (m *Message) ReaderIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(m.Reads))
	for _, r := range m.Reads {
		ids = append(ids, r.UserID)
	}
	return ids
}

// MessageReaction is one entry of a message's append-only reaction list.
// The serial ID keeps insertion order; the same user may react with the
// same symbol any number of times.
type MessageReaction struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	MessageID uuid.UUID `gorm:"type:uuid;not null;index" json:"messageId"`
	UserID    uuid.UUID `gorm:"type:uuid;not null" json:"userId"`
	Reaction  string    `gorm:"type:varchar(64);not null" json:"reaction"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
}

func (MessageReaction) TableName() string {
	return "message_reactions"
}

// MessageRead represents message read status
type MessageRead struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	MessageID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_message_user_read" json:"messageId"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_message_user_read" json:"userId"`
	ReadAt    time.Time `gorm:"not null" json:"readAt"`
}

func (MessageRead) TableName() string {
	return "message_reads"
}
