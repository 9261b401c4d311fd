package handler

import (
	"realtime-chat/internal/domain"
	"realtime-chat/internal/event"
)

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Username string `json:"username" example:"alice"`
} // @name LoginRequest

// UserResponse is the public form of a user
type UserResponse struct {
	ID       string `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Username string `json:"username" example:"alice"`
	Avatar   string `json:"avatar" example:""`
} // @name UserResponse

// LoginResponse carries the token to present on /ws?token=
type LoginResponse struct {
	Token string       `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	User  UserResponse `json:"user"`
} // @name LoginResponse

// OnlineUsersResponse lists the users currently connected to this server
type OnlineUsersResponse struct {
	Users []event.UserPresencePayload `json:"users"`
	Count int                         `json:"count" example:"2"`
} // @name OnlineUsersResponse

// MessagesResponse is a page of room history, oldest first
type MessagesResponse struct {
	Room     string              `json:"room" example:"global"`
	Messages []event.MessageView `json:"messages"`
} // @name MessagesResponse

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error" example:"username required"`
} // @name ErrorResponse

func ToUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:       u.ID.String(),
		Username: u.Username,
		Avatar:   u.Avatar,
	}
}

func ToOnlineUsersResponse(users []domain.Identity) OnlineUsersResponse {
	resp := OnlineUsersResponse{
		Users: make([]event.UserPresencePayload, 0, len(users)),
		Count: len(users),
	}
	for _, u := range users {
		resp.Users = append(resp.Users, event.ToUserPresence(u))
	}
	return resp
}
