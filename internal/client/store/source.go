// Package store holds the client-side state containers. Each store owns
// its slice of state behind a mutex, talks to a data source and announces
// changes on the event bus.
package store

import (
	"context"

	"komun/internal/models"
	"komun/pkg/protocol"
)

type AuthSource interface {
	Login(ctx context.Context, email, password string) (*models.User, error)
	Register(ctx context.Context, req protocol.RegisterRequest) (*models.User, error)
	Logout(ctx context.Context) error
	VerifyInvitation(ctx context.Context, code string) (*models.InvitationVerification, error)
	HasSession() bool
	ClearSession() error
	GetProfile(ctx context.Context) (*models.User, error)
	UpdateProfile(ctx context.Context, upd protocol.ProfileUpdate) (*models.User, error)
	DeleteAccount(ctx context.Context, password string) error
}

type PostSource interface {
	GetPosts(ctx context.Context, page int) (*protocol.ListResponse[models.Post], error)
	GetPost(ctx context.Context, id string) (*models.Post, error)
	CreatePost(ctx context.Context, np protocol.NewPost) (*models.Post, error)
	LikePost(ctx context.Context, id string) error
	UnlikePost(ctx context.Context, id string) error
	GetComments(ctx context.Context, postID string, page int) (*protocol.ListResponse[models.Comment], error)
	CreateComment(ctx context.Context, postID, content string) (*models.Comment, error)
}

type ChannelSource interface {
	GetChannels(ctx context.Context) ([]models.Channel, error)
	GetChannel(ctx context.Context, id string) (*models.Channel, error)
	GetMessages(ctx context.Context, channelID string, page int) (*protocol.ListResponse[models.Message], error)
	SendMessage(ctx context.Context, channelID, content string) (*models.Message, error)
}

type ResidentSource interface {
	GetResidents(ctx context.Context, search string) ([]models.Resident, error)
}

type BlockSource interface {
	GetBlocks(ctx context.Context) ([]models.Block, error)
	CreateBlock(ctx context.Context, userID string) (*models.Block, error)
	DeleteBlock(ctx context.Context, blockID string) error
}

type ReportSource interface {
	CreateReport(ctx context.Context, req protocol.CreateReportRequest) error
}

type NotificationSource interface {
	GetNotifications(ctx context.Context) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
}

type OrganizationSource interface {
	GetOrganization(ctx context.Context) (*models.Organization, error)
}

// Source is everything a session needs from the backend. Both the remote
// API client and the fixture source implement it.
type Source interface {
	AuthSource
	PostSource
	ChannelSource
	ResidentSource
	BlockSource
	ReportSource
	NotificationSource
	OrganizationSource
}
