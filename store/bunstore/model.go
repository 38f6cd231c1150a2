package bunstore

import (
	"time"

	"github.com/photoshare/photoauth"
	"github.com/uptrace/bun"
)

type userModel struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           string    `bun:"id,pk"`
	Email        string    `bun:"email,notnull,unique"`
	Username     string    `bun:"username,notnull"`
	PasswordHash string    `bun:"password_hash,notnull"`
	Avatar       string    `bun:"avatar,nullzero"`
	Role         int16     `bun:"role,notnull"`
	Confirmed    bool      `bun:"confirmed,notnull"`
	RefreshToken string    `bun:"refresh_token,nullzero"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
	UpdatedAt    time.Time `bun:"updated_at,notnull"`
}

func fromIdentity(id *photoauth.Identity) *userModel {
	return &userModel{
		ID:           id.ID,
		Email:        id.Email,
		Username:     id.Username,
		PasswordHash: id.PasswordHash,
		Avatar:       id.Avatar,
		Role:         int16(id.Role),
		Confirmed:    id.Confirmed,
		RefreshToken: id.RefreshToken,
		CreatedAt:    id.CreatedAt.UTC(),
		UpdatedAt:    id.UpdatedAt.UTC(),
	}
}

func (m *userModel) identity() *photoauth.Identity {
	return &photoauth.Identity{
		ID:           m.ID,
		Email:        m.Email,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		Avatar:       m.Avatar,
		Role:         photoauth.Role(m.Role),
		Confirmed:    m.Confirmed,
		RefreshToken: m.RefreshToken,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
}
