package store

import (
	"context"
	"strings"
	"sync"

	"komun/internal/client/events"
	"komun/internal/client/logger"
	apperrors "komun/internal/errors"
	"komun/internal/models"
	"komun/pkg/protocol"
)

// AuthStatus is the session state machine.
type AuthStatus int

const (
	StatusUninitialized AuthStatus = iota
	StatusRestoring
	StatusAuthenticated
	StatusAnonymous
)

func (s AuthStatus) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusRestoring:
		return "restoring"
	case StatusAuthenticated:
		return "authenticated"
	case StatusAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// AuthState is a snapshot of the auth store.
type AuthState struct {
	Status    AuthStatus
	User      *models.User
	IsLoading bool
	Err       string
}

// IsAuthenticated reports whether a user is signed in.
func (s AuthState) IsAuthenticated() bool {
	return s.Status == StatusAuthenticated
}

// AuthStore owns the session lifecycle.
type AuthStore struct {
	mu    sync.Mutex
	src   AuthSource
	bus   *events.Bus
	state AuthState

	initOnce sync.Once
	initErr  error

	logoutHooks []func()
}

func NewAuthStore(src AuthSource, bus *events.Bus) *AuthStore {
	return &AuthStore{src: src, bus: bus}
}

// State returns a copy of the current state.
func (s *AuthStore) State() AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}

// UserID returns the signed-in user's id, or "".
func (s *AuthStore) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.User == nil {
		return ""
	}
	return s.state.User.ID
}

// OnLogout registers fn to run after every logout or session loss.
func (s *AuthStore) OnLogout(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logoutHooks = append(s.logoutHooks, fn)
}

// Initialize restores a stored session. It runs once; later calls wait for
// and return the first result. Any failure to validate the stored token
// clears it and leaves the store anonymous.
func (s *AuthStore) Initialize(ctx context.Context) error {
	s.initOnce.Do(func() {
		s.initErr = s.restore(ctx)
	})
	return s.initErr
}

func (s *AuthStore) restore(ctx context.Context) error {
	s.update(func(st *AuthState) { st.Status = StatusRestoring })

	if !s.src.HasSession() {
		s.setAnonymous("")
		return nil
	}

	user, err := s.src.GetProfile(ctx)
	if err != nil {
		logger.Debug("Stored session rejected: %v", err)
		if clearErr := s.src.ClearSession(); clearErr != nil {
			logger.Warn("Failed to clear stored credentials: %v", clearErr)
		}
		s.setAnonymous("")
		return nil
	}

	s.setAuthenticated(user)
	return nil
}

// Login validates the credentials locally, then signs in.
func (s *AuthStore) Login(ctx context.Context, email, password string) error {
	req := protocol.LoginRequest{Email: strings.TrimSpace(email), Password: password}
	if err := validateStruct(req); err != nil {
		s.fail(err, "")
		return err
	}
	return s.authenticate(ctx, "Invalid email or password", func() (*models.User, error) {
		return s.src.Login(ctx, req.Email, req.Password)
	})
}

// Register creates an account from an invitation code and signs in.
func (s *AuthStore) Register(ctx context.Context, req protocol.RegisterRequest) error {
	req.Email = strings.TrimSpace(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.InvitationCode = strings.TrimSpace(req.InvitationCode)
	if err := validateStruct(req); err != nil {
		s.fail(err, "")
		return err
	}
	return s.authenticate(ctx, "Registration failed", func() (*models.User, error) {
		return s.src.Register(ctx, req)
	})
}

func (s *AuthStore) authenticate(ctx context.Context, fallback string, call func() (*models.User, error)) error {
	s.update(func(st *AuthState) {
		st.IsLoading = true
		st.Err = ""
	})

	user, err := call()
	if err != nil {
		err = apperrors.Normalize(err, fallback)
		s.fail(err, fallback)
		return err
	}

	s.setAuthenticated(user)
	return nil
}

// VerifyInvitation checks an invitation code before registration.
func (s *AuthStore) VerifyInvitation(ctx context.Context, code string) (*models.InvitationVerification, error) {
	req := protocol.VerifyInvitationRequest{Code: strings.TrimSpace(code)}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	v, err := s.src.VerifyInvitation(ctx, req.Code)
	if err != nil {
		return nil, apperrors.Normalize(err, "Could not verify the invitation code")
	}
	return v, nil
}

// Logout notifies the server, ignoring failures, then always clears the
// local session.
func (s *AuthStore) Logout(ctx context.Context) {
	s.update(func(st *AuthState) { st.IsLoading = true })

	if err := s.src.Logout(ctx); err != nil {
		logger.Debug("Server logout failed: %v", err)
	}
	s.endSession()
}

// Expire drops the session after the server refused it.
func (s *AuthStore) Expire() {
	if s.State().Status != StatusAuthenticated {
		return
	}
	s.endSession()
}

// UpdateProfile saves the non-empty fields and refreshes the stored user.
func (s *AuthStore) UpdateProfile(ctx context.Context, upd protocol.ProfileUpdate) error {
	if err := validateStruct(upd); err != nil {
		return err
	}
	user, err := s.src.UpdateProfile(ctx, upd)
	if err != nil {
		return apperrors.Normalize(err, "Could not update your profile")
	}
	s.UpdateUser(*user)
	return nil
}

// DeleteAccount removes the account after password confirmation and ends the session.
func (s *AuthStore) DeleteAccount(ctx context.Context, password string) error {
	if err := validateStruct(protocol.DeleteAccountRequest{Password: password}); err != nil {
		return err
	}
	if err := s.src.DeleteAccount(ctx, password); err != nil {
		return apperrors.Normalize(err, "Could not delete your account")
	}
	s.endSession()
	return nil
}

// UpdateUser replaces the signed-in user.
func (s *AuthStore) UpdateUser(user models.User) {
	s.update(func(st *AuthState) { st.User = &user })
	s.publish()
}

func (s *AuthStore) ClearError() {
	s.update(func(st *AuthState) { st.Err = "" })
}

func (s *AuthStore) endSession() {
	if err := s.src.ClearSession(); err != nil {
		logger.Warn("Failed to clear stored credentials: %v", err)
	}
	s.setAnonymous("")

	s.mu.Lock()
	hooks := append([]func(){}, s.logoutHooks...)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

func (s *AuthStore) setAuthenticated(user *models.User) {
	u := *user
	s.update(func(st *AuthState) {
		st.Status = StatusAuthenticated
		st.User = &u
		st.IsLoading = false
		st.Err = ""
	})
	s.publish()
}

func (s *AuthStore) setAnonymous(errMsg string) {
	s.update(func(st *AuthState) {
		st.Status = StatusAnonymous
		st.User = nil
		st.IsLoading = false
		st.Err = errMsg
	})
	s.publish()
}

func (s *AuthStore) fail(err error, fallback string) {
	s.setAnonymous(apperrors.UserMessage(err, fallback))
}

func (s *AuthStore) update(fn func(*AuthState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}

func (s *AuthStore) publish() {
	st := s.State()
	data := events.AuthData{Authenticated: st.IsAuthenticated()}
	if st.User != nil {
		data.UserID = st.User.ID
	}
	s.bus.Publish(events.Event{Type: events.EventAuthChanged, Data: data})
}
