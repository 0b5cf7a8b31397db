package client

import (
	"strings"
	"time"
)

// TempIDPrefix marks ids the client made up; server ids never carry it.
const TempIDPrefix = "temp-"

type User struct {
	ID         string    `json:"id"`
	FullName   string    `json:"fullName"`
	Email      string    `json:"email"`
	ProfilePic string    `json:"profilePic,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type AuthResponse struct {
	User     User      `json:"user"`
	Token    string    `json:"token"`
	ExpireAt time.Time `json:"expireAt"`
}

type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text,omitempty"`
	Image      string    `json:"image,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	// Optimistic is set on local placeholders until the server confirms them.
	Optimistic bool `json:"-"`
}

// IsOptimistic reports whether id belongs to a local placeholder.
func IsOptimistic(id string) bool { return strings.HasPrefix(id, TempIDPrefix) }

// between reports whether m was exchanged by a and b in either direction.
func (m *Message) between(a, b string) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}

// sameContent matches a placeholder to the record the server made from it.
func (m *Message) sameContent(o *Message) bool {
	return m.SenderID == o.SenderID && m.ReceiverID == o.ReceiverID && m.Text == o.Text && m.Image == o.Image
}

type signupRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sendRequest struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

type deleteResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId"`
}

type presenceResponse struct {
	Online []string `json:"online"`
}
