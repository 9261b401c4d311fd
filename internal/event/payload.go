package event

import (
	"time"

	"realtime-chat/internal/domain"
)

// RoomPayload is the data of join_room and leave_room.
type RoomPayload struct {
	Room string `json:"room"`
}

type SendMessagePayload struct {
	Content  string `json:"content"`
	Room     string `json:"room,omitempty"`
	Type     string `json:"type,omitempty"`
	ToUserID string `json:"toUserId,omitempty"`
}

type TypingPayload struct {
	Room     string `json:"room,omitempty"`
	IsTyping bool   `json:"isTyping"`
	ToUserID string `json:"toUserId,omitempty"`
}

type ReadMessagesPayload struct {
	MessageIDs []string `json:"messageIds"`
	Room       string   `json:"room,omitempty"`
}

type ReactionPayload struct {
	MessageID string `json:"messageId"`
	Reaction  string `json:"reaction"`
}

// UserPresencePayload is the data of user:online and user:offline.
type UserPresencePayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type TypingUpdatePayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
	Room     string `json:"room,omitempty"`
	Private  bool   `json:"private,omitempty"`
}

type MessagesReadPayload struct {
	MessageIDs []string `json:"messageIds"`
	UserID     string   `json:"userId"`
}

type MessageReactionPayload struct {
	MessageID string `json:"messageId"`
	Reaction  string `json:"reaction"`
	UserID    string `json:"userId"`
}

type SystemPayload struct {
	Text string `json:"text"`
	Room string `json:"room"`
}

type AckPayload struct {
	Status    string `json:"status"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SenderView is the displayable form of a message sender.
type SenderView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

type ReactionView struct {
	UserID    string    `json:"userId"`
	Reaction  string    `json:"reaction"`
	CreatedAt time.Time `json:"createdAt"`
}

// MessageView is a message as delivered to clients.
type MessageView struct {
	ID        string         `json:"id"`
	Room      string         `json:"room"`
	Sender    SenderView     `json:"sender"`
	Content   string         `json:"content"`
	Type      string         `json:"type"`
	Reactions []ReactionView `json:"reactions"`
	ReadBy    []string       `json:"readBy"`
	CreatedAt time.Time      `json:"createdAt"`
}

func ToMessageView(m *domain.Message) MessageView {
	view := MessageView{
		ID:   m.ID.String(),
		Room: m.Room,
		Sender: SenderView{
			ID:       m.SenderID.String(),
			Username: m.Sender.Username,
			Avatar:   m.Sender.Avatar,
		},
		Content:   m.Content,
		Type:      string(m.Type),
		Reactions: make([]ReactionView, 0, len(m.Reactions)),
		ReadBy:    make([]string, 0, len(m.Reads)),
		CreatedAt: m.CreatedAt,
	}
	for _, r := range m.Reactions {
		view.Reactions = append(view.Reactions, ReactionView{
			UserID:    r.UserID.String(),
			Reaction:  r.Reaction,
			CreatedAt: r.CreatedAt,
		})
	}
	for _, id := range m.ReaderIDs() {
		view.ReadBy = append(view.ReadBy, id.String())
	}
	return view
}

func ToMessageViews(messages []domain.Message) []MessageView {
	views := make([]MessageView, 0, len(messages))
	for i := range messages {
		views = append(views, ToMessageView(&messages[i]))
	}
	return views
}

func ToUserPresence(id domain.Identity) UserPresencePayload {
	return UserPresencePayload{UserID: id.UserID.String(), Username: id.Username}
}
