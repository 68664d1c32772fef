package model

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

var (
	ErrUsernameRequired     = errors.New("username is required")
	ErrInvalidEmail         = errors.New("email is invalid")
	ErrBusinessNameRequired = errors.New("business_name is required")
	ErrCategoryRequired     = errors.New("category is required")
)

type User struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	IsMerchant bool      `json:"is_merchant"`
	CreatedAt  time.Time `json:"created_at"`
}

type UserCreateRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (r *UserCreateRequest) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
	if r.Username == "" {
		return ErrUsernameRequired
	}
	if r.Email != "" {
		if _, err := mail.ParseAddress(r.Email); err != nil {
			return ErrInvalidEmail
		}
	}
	return nil
}

type MerchantProfile struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	BusinessName string    `json:"business_name"`
	Category     string    `json:"category"`
	CreatedAt    time.Time `json:"created_at"`
}

type MerchantCreateRequest struct {
	BusinessName string `json:"business_name"`
	Category     string `json:"category"`
}

func (r *MerchantCreateRequest) Validate() error {
	r.BusinessName = strings.TrimSpace(r.BusinessName)
	r.Category = strings.TrimSpace(r.Category)
	if r.BusinessName == "" {
		return ErrBusinessNameRequired
	}
	if r.Category == "" {
		return ErrCategoryRequired
	}
	return nil
}

// Account is what registration hands back.
type Account struct {
	User     *User            `json:"user"`
	Wallet   *Wallet          `json:"wallet"`
	Merchant *MerchantProfile `json:"merchant,omitempty"`
}
