// Package fixture is a deterministic in-memory stand-in for the komun API.
// It issues real signed tokens into the same credential store the remote
// client uses, so a session survives across CLI invocations.
package fixture

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"komun/internal/client/api"
	apperrors "komun/internal/errors"
	"komun/internal/models"
	"komun/pkg/protocol"
)

// Operation names for FailNext, Pause and Calls.
const (
	OpLogin                = "Login"
	OpRegister             = "Register"
	OpLogout               = "Logout"
	OpVerifyInvitation     = "VerifyInvitation"
	OpGetOrganization      = "GetOrganization"
	OpGetProfile           = "GetProfile"
	OpUpdateProfile        = "UpdateProfile"
	OpDeleteAccount        = "DeleteAccount"
	OpGetPosts             = "GetPosts"
	OpGetPost              = "GetPost"
	OpCreatePost           = "CreatePost"
	OpLikePost             = "LikePost"
	OpUnlikePost           = "UnlikePost"
	OpGetComments          = "GetComments"
	OpCreateComment        = "CreateComment"
	OpGetChannels          = "GetChannels"
	OpGetChannel           = "GetChannel"
	OpGetMessages          = "GetMessages"
	OpSendMessage          = "SendMessage"
	OpGetResidents         = "GetResidents"
	OpGetBlocks            = "GetBlocks"
	OpCreateBlock          = "CreateBlock"
	OpDeleteBlock          = "DeleteBlock"
	OpCreateReport         = "CreateReport"
	OpGetNotifications     = "GetNotifications"
	OpMarkNotificationRead = "MarkNotificationRead"
)

const (
	DefaultPageSize = 10
	accessTokenTTL  = 24 * time.Hour
)

var signingKey = []byte("komun-fixture-signing-key")

type account struct {
	user     models.User
	password string
}

type community struct {
	accounts      map[string]account
	residents     []models.Resident
	posts         []models.Post // newest first
	comments      map[string][]models.Comment
	channels      []models.Channel
	messages      map[string][]models.Message // oldest first
	blocks        []models.Block
	reports       []models.Report
	notifications []models.Notification
}

func (c *community) author(id string) models.Author {
	for _, r := range c.residents {
		if r.ID == id {
			return models.Author{ID: r.ID, FirstName: r.FirstName, LastName: r.LastName, AvatarURL: r.AvatarURL, ApartmentNumber: r.ApartmentNumber}
		}
	}
	return models.Author{ID: id}
}

// Source serves a seeded community from memory.
type Source struct {
	mu       sync.Mutex
	tokens   api.TokenStore
	now      func() time.Time
	pageSize int
	data     *community

	calls    map[string]int
	failures map[string]error
	gates    map[string]chan struct{}
}

// Option configures a Source.
type Option func(*Source)

// WithClock sets the time source used for seeding and new records.
func WithClock(now func() time.Time) Option {
	return func(s *Source) { s.now = now }
}

// WithPageSize sets the page size of paginated lists.
func WithPageSize(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// New creates a Source that persists issued tokens in tokens.
func New(tokens api.TokenStore, opts ...Option) *Source {
	s := &Source{
		tokens:   tokens,
		now:      time.Now,
		pageSize: DefaultPageSize,
		calls:    make(map[string]int),
		failures: make(map[string]error),
		gates:    make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.data = seedCommunity(s.now())
	return s
}

// FailNext makes the next call of op return err.
func (s *Source) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

// Pause blocks calls of op until the returned release func is called.
// Blocked calls are already counted by Calls.
func (s *Source) Pause(op string) (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gates[op] = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.gates[op] == gate {
				delete(s.gates, op)
			}
			s.mu.Unlock()
			close(gate)
		})
	}
}

// Calls returns how many times op was invoked.
func (s *Source) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// InjectMessage appends a message from another resident, as if they had
// just posted it.
func (s *Source) InjectMessage(channelID, authorID, content string) models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendMessage(channelID, s.data.author(authorID), content)
}

// LikeFromResident adds a like from another resident to a post.
func (s *Source) LikeFromResident(postID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.postIndex(postID); i >= 0 {
		s.data.posts[i].LikesCount++
	}
}

// enter records the call, waits on a pause gate and pops an injected failure.
func (s *Source) enter(ctx context.Context, op string) error {
	s.mu.Lock()
	s.calls[op]++
	gate := s.gates[op]
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return &apperrors.NetworkError{Op: op, Err: ctx.Err()}
		}
	}
	if err := ctx.Err(); err != nil {
		return &apperrors.NetworkError{Op: op, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failures[op]; ok {
		delete(s.failures, op)
		return err
	}
	return nil
}

// authorized enters op and then checks the stored session, returning the
// signed-in user. An invalid session clears the stored credentials.
func (s *Source) authorized(ctx context.Context, op string) (models.User, error) {
	if err := s.enter(ctx, op); err != nil {
		return models.User{}, err
	}

	access, _, err := s.tokens.Tokens()
	if err != nil {
		return models.User{}, err
	}
	claims := jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(access, &claims, func(*jwt.Token) (any, error) {
		return signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		_ = s.tokens.Clear()
		return models.User{}, &apperrors.AuthError{Message: "session expired", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acc := range s.data.accounts {
		if acc.user.ID == claims.Subject {
			return acc.user, nil
		}
	}
	_ = s.tokens.Clear()
	return models.User{}, &apperrors.AuthError{Message: "session expired", Err: apperrors.ErrNoSession}
}

func (s *Source) issueTokens(user models.User) error {
	now := s.now()
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   user.ID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(accessTokenTTL)),
	}).SignedString(signingKey)
	if err != nil {
		return err
	}
	return s.tokens.SetTokens(access, "fixture-refresh-"+uuid.NewString())
}

// Auth

func (s *Source) Login(ctx context.Context, email, password string) (*models.User, error) {
	if err := s.enter(ctx, OpLogin); err != nil {
		return nil, err
	}

	s.mu.Lock()
	acc, ok := s.data.accounts[strings.ToLower(email)]
	s.mu.Unlock()
	if !ok || acc.password != password {
		return nil, &apperrors.HTTPError{Status: http.StatusUnauthorized, Message: "Invalid email or password"}
	}
	if err := s.issueTokens(acc.user); err != nil {
		return nil, err
	}
	user := acc.user
	return &user, nil
}

func (s *Source) Register(ctx context.Context, req protocol.RegisterRequest) (*models.User, error) {
	if err := s.enter(ctx, OpRegister); err != nil {
		return nil, err
	}
	if req.InvitationCode != DemoInvitation {
		return nil, &apperrors.HTTPError{Status: http.StatusBadRequest, Message: "Invalid invitation code"}
	}

	s.mu.Lock()
	email := strings.ToLower(req.Email)
	if _, taken := s.data.accounts[email]; taken {
		s.mu.Unlock()
		return nil, &apperrors.HTTPError{Status: http.StatusConflict, Message: "Email already registered"}
	}
	created := s.now()
	user := models.User{
		ID:             uuid.NewString(),
		Email:          email,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		OrganizationID: demoOrganization.ID,
		Role:           "resident",
		CreatedAt:      &created,
	}
	s.data.accounts[email] = account{user: user, password: req.Password}
	s.data.residents = append(s.data.residents, models.Resident{ID: user.ID, FirstName: user.FirstName, LastName: user.LastName, Role: user.Role})
	s.mu.Unlock()

	if err := s.issueTokens(user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Source) Logout(ctx context.Context) error {
	_, err := s.authorized(ctx, OpLogout)
	return err
}

func (s *Source) VerifyInvitation(ctx context.Context, code string) (*models.InvitationVerification, error) {
	if err := s.enter(ctx, OpVerifyInvitation); err != nil {
		return nil, err
	}
	if strings.EqualFold(strings.TrimSpace(code), DemoInvitation) {
		return &models.InvitationVerification{Valid: true, OrganizationName: demoOrganization.Name, BuildingName: "Building A"}, nil
	}
	return &models.InvitationVerification{Valid: false}, nil
}

// HasSession reports whether an access token is stored.
func (s *Source) HasSession() bool {
	access, _, err := s.tokens.Tokens()
	return err == nil && access != ""
}

// ClearSession deletes both stored credentials.
func (s *Source) ClearSession() error {
	return s.tokens.Clear()
}

func (s *Source) GetOrganization(ctx context.Context) (*models.Organization, error) {
	if _, err := s.authorized(ctx, OpGetOrganization); err != nil {
		return nil, err
	}
	org := demoOrganization
	return &org, nil
}

// Profile

func (s *Source) GetProfile(ctx context.Context) (*models.User, error) {
	me, err := s.authorized(ctx, OpGetProfile)
	if err != nil {
		return nil, err
	}
	return &me, nil
}

func (s *Source) UpdateProfile(ctx context.Context, upd protocol.ProfileUpdate) (*models.User, error) {
	me, err := s.authorized(ctx, OpUpdateProfile)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if upd.FirstName != "" {
		me.FirstName = upd.FirstName
	}
	if upd.LastName != "" {
		me.LastName = upd.LastName
	}
	if upd.Phone != "" {
		me.Phone = upd.Phone
	}
	if upd.Bio != "" {
		me.Bio = upd.Bio
	}
	if upd.AvatarPath != "" {
		me.AvatarURL = "file://" + upd.AvatarPath
	}
	acc := s.data.accounts[me.Email]
	acc.user = me
	s.data.accounts[me.Email] = acc
	return &me, nil
}

func (s *Source) DeleteAccount(ctx context.Context, password string) error {
	me, err := s.authorized(ctx, OpDeleteAccount)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.accounts[me.Email].password != password {
		return &apperrors.HTTPError{Status: http.StatusForbidden, Message: "Incorrect password"}
	}
	delete(s.data.accounts, me.Email)
	s.data.residents = slices.DeleteFunc(s.data.residents, func(r models.Resident) bool { return r.ID == me.ID })
	return nil
}

// Posts

func (s *Source) GetPosts(ctx context.Context, page int) (*protocol.ListResponse[models.Post], error) {
	if _, err := s.authorized(ctx, OpGetPosts); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return paginate(s.data.posts, page, s.pageSize), nil
}

func (s *Source) GetPost(ctx context.Context, id string) (*models.Post, error) {
	if _, err := s.authorized(ctx, OpGetPost); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.postIndex(id)
	if i < 0 {
		return nil, notFound("Post")
	}
	p := s.data.posts[i]
	return &p, nil
}

func (s *Source) CreatePost(ctx context.Context, np protocol.NewPost) (*models.Post, error) {
	me, err := s.authorized(ctx, OpCreatePost)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(np.Content) == "" {
		return nil, &apperrors.HTTPError{Status: http.StatusUnprocessableEntity, Message: "Content is required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p := models.Post{
		ID:        uuid.NewString(),
		Content:   np.Content,
		Author:    s.data.author(me.ID),
		CreatedAt: s.now(),
	}
	if np.ImagePath != "" {
		p.ImageURL = "file://" + np.ImagePath
	}
	s.data.posts = append([]models.Post{p}, s.data.posts...)
	return &p, nil
}

func (s *Source) LikePost(ctx context.Context, id string) error {
	return s.setLike(ctx, OpLikePost, id, true)
}

func (s *Source) UnlikePost(ctx context.Context, id string) error {
	return s.setLike(ctx, OpUnlikePost, id, false)
}

func (s *Source) setLike(ctx context.Context, op, id string, liked bool) error {
	if _, err := s.authorized(ctx, op); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.postIndex(id)
	if i < 0 {
		return notFound("Post")
	}
	p := &s.data.posts[i]
	if p.LikedByMe == liked {
		return nil
	}
	p.LikedByMe = liked
	if liked {
		p.LikesCount++
	} else {
		p.LikesCount--
	}
	return nil
}

func (s *Source) GetComments(ctx context.Context, postID string, page int) (*protocol.ListResponse[models.Comment], error) {
	if _, err := s.authorized(ctx, OpGetComments); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.postIndex(postID) < 0 {
		return nil, notFound("Post")
	}
	return paginate(s.data.comments[postID], page, s.pageSize), nil
}

func (s *Source) CreateComment(ctx context.Context, postID, content string) (*models.Comment, error) {
	me, err := s.authorized(ctx, OpCreateComment)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.postIndex(postID)
	if i < 0 {
		return nil, notFound("Post")
	}
	cm := models.Comment{
		ID:        uuid.NewString(),
		PostID:    postID,
		Content:   content,
		Author:    s.data.author(me.ID),
		CreatedAt: s.now(),
	}
	s.data.comments[postID] = append(s.data.comments[postID], cm)
	s.data.posts[i].CommentsCount++
	return &cm, nil
}

func (s *Source) postIndex(id string) int {
	return slices.IndexFunc(s.data.posts, func(p models.Post) bool { return p.ID == id })
}

// Channels

func (s *Source) GetChannels(ctx context.Context) ([]models.Channel, error) {
	if _, err := s.authorized(ctx, OpGetChannels); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.data.channels), nil
}

func (s *Source) GetChannel(ctx context.Context, id string) (*models.Channel, error) {
	if _, err := s.authorized(ctx, OpGetChannel); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.channelIndex(id)
	if i < 0 {
		return nil, notFound("Channel")
	}
	ch := s.data.channels[i]
	return &ch, nil
}

// GetMessages pages a channel newest first, like the server.
func (s *Source) GetMessages(ctx context.Context, channelID string, page int) (*protocol.ListResponse[models.Message], error) {
	if _, err := s.authorized(ctx, OpGetMessages); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channelIndex(channelID) < 0 {
		return nil, notFound("Channel")
	}
	newestFirst := slices.Clone(s.data.messages[channelID])
	slices.Reverse(newestFirst)
	return paginate(newestFirst, page, s.pageSize), nil
}

func (s *Source) SendMessage(ctx context.Context, channelID, content string) (*models.Message, error) {
	me, err := s.authorized(ctx, OpSendMessage)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channelIndex(channelID) < 0 {
		return nil, notFound("Channel")
	}
	m := s.appendMessage(channelID, s.data.author(me.ID), content)
	return &m, nil
}

// appendMessage must be called with s.mu held.
func (s *Source) appendMessage(channelID string, author models.Author, content string) models.Message {
	m := models.Message{
		ID:        uuid.NewString(),
		ChannelID: channelID,
		Content:   content,
		Author:    author,
		CreatedAt: s.now(),
	}
	s.data.messages[channelID] = append(s.data.messages[channelID], m)
	if i := s.channelIndex(channelID); i >= 0 {
		s.data.channels[i].ApplyMessage(m)
	}
	return m
}

func (s *Source) channelIndex(id string) int {
	return slices.IndexFunc(s.data.channels, func(c models.Channel) bool { return c.ID == id })
}

// Residents

func (s *Source) GetResidents(ctx context.Context, search string) ([]models.Resident, error) {
	if _, err := s.authorized(ctx, OpGetResidents); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	q := strings.ToLower(strings.TrimSpace(search))
	var out []models.Resident
	for _, r := range s.data.residents {
		if q == "" || strings.Contains(strings.ToLower(r.FullName()), q) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Moderation

func (s *Source) GetBlocks(ctx context.Context) ([]models.Block, error) {
	if _, err := s.authorized(ctx, OpGetBlocks); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.data.blocks), nil
}

func (s *Source) CreateBlock(ctx context.Context, userID string) (*models.Block, error) {
	me, err := s.authorized(ctx, OpCreateBlock)
	if err != nil {
		return nil, err
	}
	if userID == me.ID {
		return nil, &apperrors.HTTPError{Status: http.StatusUnprocessableEntity, Message: "You cannot block yourself"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.ContainsFunc(s.data.blocks, func(b models.Block) bool { return b.BlockedUserID == userID }) {
		return nil, &apperrors.HTTPError{Status: http.StatusConflict, Message: "User already blocked"}
	}
	b := models.Block{
		ID:            uuid.NewString(),
		BlockedUserID: userID,
		BlockedUser:   s.data.author(userID),
		CreatedAt:     s.now(),
	}
	s.data.blocks = append(s.data.blocks, b)
	return &b, nil
}

func (s *Source) DeleteBlock(ctx context.Context, blockID string) error {
	if _, err := s.authorized(ctx, OpDeleteBlock); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.data.blocks, func(b models.Block) bool { return b.ID == blockID })
	if i < 0 {
		return notFound("Block")
	}
	s.data.blocks = slices.Delete(s.data.blocks, i, i+1)
	return nil
}

func (s *Source) CreateReport(ctx context.Context, req protocol.CreateReportRequest) error {
	if _, err := s.authorized(ctx, OpCreateReport); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.data.reports {
		if r.ContentType == req.ContentType && r.ContentID == req.ContentID {
			return &apperrors.HTTPError{Status: http.StatusConflict, Message: "You already reported this content"}
		}
	}
	s.data.reports = append(s.data.reports, models.Report{
		ID:          uuid.NewString(),
		ContentType: req.ContentType,
		ContentID:   req.ContentID,
		Reason:      req.Reason,
		Status:      "pending",
		CreatedAt:   s.now(),
	})
	return nil
}

// Reports returns the reports filed so far.
func (s *Source) Reports() []models.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.data.reports)
}

// Notifications

func (s *Source) GetNotifications(ctx context.Context) ([]models.Notification, error) {
	if _, err := s.authorized(ctx, OpGetNotifications); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.data.notifications), nil
}

func (s *Source) MarkNotificationRead(ctx context.Context, id string) error {
	if _, err := s.authorized(ctx, OpMarkNotificationRead); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.data.notifications, func(n models.Notification) bool { return n.ID == id })
	if i < 0 {
		return notFound("Notification")
	}
	s.data.notifications[i].Read = true
	return nil
}

func paginate[T any](items []T, page, size int) *protocol.ListResponse[T] {
	if page < 1 {
		page = 1
	}
	total := (len(items) + size - 1) / size
	start := min((page-1)*size, len(items))
	end := min(start+size, len(items))
	return &protocol.ListResponse[T]{
		Data: slices.Clone(items[start:end]),
		Meta: &protocol.Meta{CurrentPage: page, TotalPages: total, TotalCount: len(items)},
	}
}

func notFound(what string) error {
	return &apperrors.HTTPError{Status: http.StatusNotFound, Message: fmt.Sprintf("%s not found", what)}
}

func itoa(n int) string { return strconv.Itoa(n) }
