package model

import (
	"time"
)

const UserTableName = "users"

// User is an account that can authenticate and chat.
type User struct {
	UserID     string    `bson:"user_id" json:"id"`
	FullName   string    `bson:"full_name" json:"fullName"`
	Email      string    `bson:"email" json:"email"`
	Password   string    `bson:"password" json:"-"` // bcrypt hash
	ProfilePic string    `bson:"profile_pic,omitempty" json:"profilePic,omitempty"`
	CreateTime time.Time `bson:"create_time" json:"createdAt"`
	UpdateTime time.Time `bson:"update_time" json:"updatedAt"`
}

func (u *User) GetUserID() string {
	return u.UserID
}

func (u *User) GetTableName() string {
	return UserTableName
}

// Public returns a copy safe to hand to other users.
func (u *User) Public() User {
	out := *u
	out.Password = ""
	return out
}
