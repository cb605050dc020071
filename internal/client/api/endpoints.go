package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"komun/internal/models"
	"komun/pkg/protocol"
)

// Auth

// Login authenticates and persists the issued tokens.
func (c *Client) Login(ctx context.Context, email, password string) (*models.User, error) {
	return c.authenticate(ctx, "/auth/login", protocol.LoginRequest{Email: email, Password: password})
}

// Register creates an account from an invitation and persists the issued tokens.
func (c *Client) Register(ctx context.Context, req protocol.RegisterRequest) (*models.User, error) {
	return c.authenticate(ctx, "/auth/register", req)
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*models.User, error) {
	var resp protocol.AuthResponse
	if err := c.do(ctx, http.MethodPost, path, body, &resp, NoAuth()); err != nil {
		return nil, err
	}
	if err := c.tokens.SetTokens(resp.AccessToken, resp.RefreshToken); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// Logout tells the server to revoke the session. Local credentials are
// cleared by the caller through ClearSession.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

func (c *Client) VerifyInvitation(ctx context.Context, code string) (*models.InvitationVerification, error) {
	var v models.InvitationVerification
	if err := c.do(ctx, http.MethodPost, "/auth/verify-invitation", protocol.VerifyInvitationRequest{Code: code}, &v, NoAuth()); err != nil {
		return nil, err
	}
	return &v, nil
}

// HasSession reports whether an access token is stored.
func (c *Client) HasSession() bool {
	return c.accessToken() != ""
}

// ClearSession deletes both stored credentials.
func (c *Client) ClearSession() error {
	return c.tokens.Clear()
}

func (c *Client) GetOrganization(ctx context.Context) (*models.Organization, error) {
	var org models.Organization
	if err := c.do(ctx, http.MethodGet, "/organization", nil, &org); err != nil {
		return nil, err
	}
	return &org, nil
}

// Profile

func (c *Client) GetProfile(ctx context.Context) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, http.MethodGet, "/profile", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateProfile sends the non-empty fields and the optional avatar as multipart.
func (c *Client) UpdateProfile(ctx context.Context, upd protocol.ProfileUpdate) (*models.User, error) {
	form := NewMultipart().
		Field("first_name", upd.FirstName).
		Field("last_name", upd.LastName).
		Field("phone", upd.Phone).
		Field("bio", upd.Bio).
		File("avatar", upd.AvatarPath)

	var u models.User
	if err := c.do(ctx, http.MethodPatch, "/profile", form, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) DeleteAccount(ctx context.Context, password string) error {
	return c.do(ctx, http.MethodDelete, "/profile", protocol.DeleteAccountRequest{Password: password}, nil)
}

// Posts

func (c *Client) GetPosts(ctx context.Context, page int) (*protocol.ListResponse[models.Post], error) {
	var resp protocol.ListResponse[models.Post]
	if err := c.do(ctx, http.MethodGet, "/posts", nil, &resp, WithQuery(pageQuery(page))); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetPost(ctx context.Context, id string) (*models.Post, error) {
	var p models.Post
	if err := c.do(ctx, http.MethodGet, "/posts/"+url.PathEscape(id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) CreatePost(ctx context.Context, np protocol.NewPost) (*models.Post, error) {
	form := NewMultipart().
		Field("content", np.Content).
		File("image", np.ImagePath)

	var p models.Post
	if err := c.do(ctx, http.MethodPost, "/posts", form, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) LikePost(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/posts/"+url.PathEscape(id)+"/like", nil, nil)
}

func (c *Client) UnlikePost(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/posts/"+url.PathEscape(id)+"/like", nil, nil)
}

func (c *Client) GetComments(ctx context.Context, postID string, page int) (*protocol.ListResponse[models.Comment], error) {
	var resp protocol.ListResponse[models.Comment]
	path := "/posts/" + url.PathEscape(postID) + "/comments"
	if err := c.do(ctx, http.MethodGet, path, nil, &resp, WithQuery(pageQuery(page))); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) CreateComment(ctx context.Context, postID, content string) (*models.Comment, error) {
	var cm models.Comment
	path := "/posts/" + url.PathEscape(postID) + "/comments"
	if err := c.do(ctx, http.MethodPost, path, protocol.ContentRequest{Content: content}, &cm); err != nil {
		return nil, err
	}
	return &cm, nil
}

// Channels

func (c *Client) GetChannels(ctx context.Context) ([]models.Channel, error) {
	var resp protocol.ListResponse[models.Channel]
	if err := c.do(ctx, http.MethodGet, "/channels", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) GetChannel(ctx context.Context, id string) (*models.Channel, error) {
	var ch models.Channel
	if err := c.do(ctx, http.MethodGet, "/channels/"+url.PathEscape(id), nil, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// GetMessages returns one page of a channel, newest first.
func (c *Client) GetMessages(ctx context.Context, channelID string, page int) (*protocol.ListResponse[models.Message], error) {
	var resp protocol.ListResponse[models.Message]
	path := "/channels/" + url.PathEscape(channelID) + "/messages"
	if err := c.do(ctx, http.MethodGet, path, nil, &resp, WithQuery(pageQuery(page))); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) SendMessage(ctx context.Context, channelID, content string) (*models.Message, error) {
	var m models.Message
	path := "/channels/" + url.PathEscape(channelID) + "/messages"
	if err := c.do(ctx, http.MethodPost, path, protocol.ContentRequest{Content: content}, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Residents

func (c *Client) GetResidents(ctx context.Context, search string) ([]models.Resident, error) {
	var opts []RequestOption
	if search != "" {
		opts = append(opts, WithQuery(url.Values{"search": {search}}))
	}
	var resp protocol.ListResponse[models.Resident]
	if err := c.do(ctx, http.MethodGet, "/residents", nil, &resp, opts...); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Moderation

func (c *Client) GetBlocks(ctx context.Context) ([]models.Block, error) {
	var resp protocol.ListResponse[models.Block]
	if err := c.do(ctx, http.MethodGet, "/blocks", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) CreateBlock(ctx context.Context, userID string) (*models.Block, error) {
	var b models.Block
	if err := c.do(ctx, http.MethodPost, "/blocks", protocol.CreateBlockRequest{BlockedUserID: userID}, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) DeleteBlock(ctx context.Context, blockID string) error {
	return c.do(ctx, http.MethodDelete, "/blocks/"+url.PathEscape(blockID), nil, nil)
}

func (c *Client) CreateReport(ctx context.Context, req protocol.CreateReportRequest) error {
	return c.do(ctx, http.MethodPost, "/reports", req, nil)
}

// Notifications

func (c *Client) GetNotifications(ctx context.Context) ([]models.Notification, error) {
	var resp protocol.ListResponse[models.Notification]
	if err := c.do(ctx, http.MethodGet, "/notifications", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPatch, "/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}

func pageQuery(page int) url.Values {
	if page < 1 {
		page = 1
	}
	return url.Values{"page": {strconv.Itoa(page)}}
}
