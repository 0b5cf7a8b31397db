package store

import (
	"context"

	"PChat/module/message/model"
	"PChat/tools/errs"
)

var ErrNotFound = errs.ErrRecordNotFound.WithDetail("message")

// Store is the persistence collaborator of the message handlers.
type Store interface {
	CreateMessage(ctx context.Context, sender, receiver, text, image string) (*model.Message, error)
	// DeleteMessage returns ErrNotFound when id does not exist.
	DeleteMessage(ctx context.Context, id string) error
	FindMessage(ctx context.Context, id string) (*model.Message, error)
	// FindMessagesBetween returns both directions ordered by createdAt ascending.
	FindMessagesBetween(ctx context.Context, a, b string) ([]*model.Message, error)
	// ChatPartners returns every user id that exchanged a message with userID.
	ChatPartners(ctx context.Context, userID string) ([]string, error)
}
