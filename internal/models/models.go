package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// FlexString decodes a JSON string or number into its textual form.
// The API sends floors both as 4 and "4".
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) MarshalJSON() ([]byte, error) {
	if n, err := strconv.Atoi(string(f)); err == nil && strconv.Itoa(n) == string(f) {
		return []byte(f), nil
	}
	return json.Marshal(string(f))
}

// Author is the short user form embedded in posts, comments and messages.
type Author struct {
	ID              string `json:"id"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	AvatarURL       string `json:"avatar_url,omitempty"`
	ApartmentNumber string `json:"apartment_number,omitempty"`
}

// FullName returns "First Last".
func (a Author) FullName() string {
	return joinName(a.FirstName, a.LastName)
}

type User struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	AvatarURL       string     `json:"avatar_url,omitempty"`
	Phone           string     `json:"phone,omitempty"`
	Floor           FlexString `json:"floor,omitempty"`
	Apartment       string     `json:"apartment,omitempty"`
	ApartmentNumber string     `json:"apartment_number,omitempty"`
	Bio             string     `json:"bio,omitempty"`
	BuildingID      string     `json:"building_id,omitempty"`
	OrganizationID  string     `json:"organization_id,omitempty"`
	Role            string     `json:"role,omitempty"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
}

func (u User) FullName() string {
	return joinName(u.FirstName, u.LastName)
}

type Organization struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	LogoURL string `json:"logo_url,omitempty"`
}

type InvitationVerification struct {
	Valid            bool   `json:"valid"`
	OrganizationName string `json:"organization_name"`
	BuildingName     string `json:"building_name"`
}

type Resident struct {
	ID              string     `json:"id"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	AvatarURL       string     `json:"avatar_url,omitempty"`
	Floor           FlexString `json:"floor,omitempty"`
	Apartment       string     `json:"apartment,omitempty"`
	ApartmentNumber string     `json:"apartment_number,omitempty"`
	Phone           string     `json:"phone,omitempty"`
	Email           string     `json:"email,omitempty"`
	Role            string     `json:"role,omitempty"`
}

func (r Resident) FullName() string {
	return joinName(r.FirstName, r.LastName)
}

// ApartmentLabel prefers the apartment field and falls back to apartment_number.
func (r Resident) ApartmentLabel() string {
	if r.Apartment != "" {
		return r.Apartment
	}
	return r.ApartmentNumber
}

type Post struct {
	ID            string     `json:"id"`
	Title         string     `json:"title,omitempty"`
	Content       string     `json:"content"`
	ImageURL      string     `json:"image_url,omitempty"`
	Author        Author     `json:"author"`
	LikesCount    int        `json:"likes_count"`
	CommentsCount int        `json:"comments_count"`
	LikedByMe     bool       `json:"liked_by_me"`
	Category      string     `json:"category,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// UnmarshalJSON accepts both liked_by_me and the older liked flag, and a
// null image_url.
func (p *Post) UnmarshalJSON(b []byte) error {
	type plain Post
	var wire struct {
		plain
		ImageURL *string `json:"image_url"`
		Liked    *bool   `json:"liked"`
		LikedBy  *bool   `json:"liked_by_me"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	*p = Post(wire.plain)
	if wire.ImageURL != nil {
		p.ImageURL = *wire.ImageURL
	}
	switch {
	case wire.LikedBy != nil:
		p.LikedByMe = *wire.LikedBy
	case wire.Liked != nil:
		p.LikedByMe = *wire.Liked
	}
	return nil
}

type Comment struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Author    Author    `json:"author"`
	PostID    string    `json:"post_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Author    Author    `json:"author"`
	ChannelID string    `json:"channel_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Channel struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Description        string     `json:"description,omitempty"`
	LastMessagePreview string     `json:"last_message,omitempty"`
	LastMessageAt      *time.Time `json:"last_message_at,omitempty"`
	UnreadCount        int        `json:"unread_count"`
	MembersCount       int        `json:"members_count"`
	Icon               string     `json:"icon,omitempty"`
}

// UnmarshalJSON flattens last_message, which the API sends either as a
// preview string or as a full message object.
func (c *Channel) UnmarshalJSON(b []byte) error {
	type plain Channel
	var wire struct {
		plain
		LastMessage json.RawMessage `json:"last_message"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	*c = Channel(wire.plain)
	c.LastMessagePreview = ""

	raw := bytes.TrimSpace(wire.LastMessage)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
	case raw[0] == '"':
		if err := json.Unmarshal(raw, &c.LastMessagePreview); err != nil {
			return err
		}
	default:
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			return err
		}
		c.ApplyMessage(msg)
	}
	return nil
}

// ApplyMessage sets the channel preview from a message.
func (c *Channel) ApplyMessage(msg Message) {
	c.LastMessagePreview = msg.Content
	if msg.Author.FirstName != "" {
		c.LastMessagePreview = msg.Author.FirstName + ": " + msg.Content
	}
	if !msg.CreatedAt.IsZero() {
		at := msg.CreatedAt
		c.LastMessageAt = &at
	}
}

type Block struct {
	ID            string    `json:"id"`
	BlockedUserID string    `json:"blocked_user_id"`
	BlockedUser   Author    `json:"blocked_user"`
	CreatedAt     time.Time `json:"created_at"`
}

type Report struct {
	ID          string    `json:"id,omitempty"`
	ContentType string    `json:"content_type"`
	ContentID   string    `json:"content_id"`
	Reason      string    `json:"reason"`
	Status      string    `json:"status,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

func joinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}
