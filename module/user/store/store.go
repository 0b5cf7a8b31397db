package store

import (
	"context"

	"PChat/module/user/model"
	"PChat/tools/errs"
)

var (
	ErrNotFound   = errs.ErrUserNotFound
	ErrEmailTaken = errs.ErrRecordIsExist.WithDetail("user already exists")
)

// Store persists user accounts.
type Store interface {
	Create(ctx context.Context, u *model.User) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]*model.User, error)
	Exists(ctx context.Context, id string) (bool, error)
	// ListExcept returns every user except id, ordered by name.
	ListExcept(ctx context.Context, id string) ([]*model.User, error)
	UpdateProfilePic(ctx context.Context, id, pic string) (*model.User, error)
}
