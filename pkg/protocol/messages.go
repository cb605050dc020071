package protocol

import (
	"bytes"
	"encoding/json"

	"komun/internal/models"
)

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=8"`
	FirstName      string `json:"first_name" validate:"required"`
	LastName       string `json:"last_name" validate:"required"`
	InvitationCode string `json:"invitation_code" validate:"required"`
}

// AuthResponse is returned by login and register.
type AuthResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         models.User `json:"user"`
}

// RefreshRequest exchanges a refresh token for a new access token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshResponse carries the new access token. RefreshToken is set only
// when the server rotates it.
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// VerifyInvitationRequest is the body of POST /auth/verify-invitation.
type VerifyInvitationRequest struct {
	Code string `json:"code" validate:"required"`
}

// ContentRequest is the body used for messages and comments.
type ContentRequest struct {
	Content string `json:"content" validate:"required,max=5000"`
}

// NewPost describes a post to create. ImagePath is a local file sent as multipart.
type NewPost struct {
	Content   string `validate:"required,max=5000"`
	ImagePath string
}

// ProfileUpdate holds the editable profile fields. Empty fields are not sent.
type ProfileUpdate struct {
	FirstName  string
	LastName   string
	Phone      string
	Bio        string `validate:"max=500"`
	AvatarPath string
}

// DeleteAccountRequest is the body of DELETE /profile.
type DeleteAccountRequest struct {
	Password string `json:"password" validate:"required"`
}

// CreateBlockRequest is the body of POST /blocks.
type CreateBlockRequest struct {
	BlockedUserID string `json:"blocked_user_id" validate:"required"`
}

// CreateReportRequest is the body of POST /reports.
type CreateReportRequest struct {
	ContentType string `json:"content_type" validate:"required,oneof=post message comment user"`
	ContentID   string `json:"content_id" validate:"required"`
	Reason      string `json:"reason" validate:"required,max=500"`
}

// ErrorResponse is the error body returned by the API. Error is usually a
// string; some deployments send a boolean flag and put the text in Message.
type ErrorResponse struct {
	Error   json.RawMessage `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Text returns the most specific message the body carries.
func (r ErrorResponse) Text() string {
	var s string
	if len(r.Error) > 0 && json.Unmarshal(r.Error, &s) == nil && s != "" {
		return s
	}
	return r.Message
}

// Meta is the pagination block of list responses.
type Meta struct {
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
	TotalCount  int `json:"total_count"`
}

// ListResponse is a page of T. It decodes both the {data, meta} envelope
// and a bare JSON array.
type ListResponse[T any] struct {
	Data []T  `json:"data"`
	Meta *Meta `json:"meta,omitempty"`
}

type listEnvelope[T any] struct {
	Data []T  `json:"data"`
	Meta *Meta `json:"meta,omitempty"`
}

func (r *ListResponse[T]) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		r.Meta = nil
		return json.Unmarshal(trimmed, &r.Data)
	}

	var env listEnvelope[T]
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return err
	}
	r.Data = env.Data
	r.Meta = env.Meta
	return nil
}

// HasMore applies the pagination contract: an empty page ends the list;
// with meta, more pages exist while current_page < total_pages; without
// meta, a non-empty page implies there may be more.
func (r *ListResponse[T]) HasMore() bool {
	if r == nil || len(r.Data) == 0 {
		return false
	}
	if r.Meta != nil {
		return r.Meta.CurrentPage < r.Meta.TotalPages
	}
	return true
}
