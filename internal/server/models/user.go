package models

import "time"

type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	AvatarURL    *string
	IsVerified   bool
	CreatedAt    time.Time
}
