// Package app wires one client session: credential storage, the data
// source chosen by configuration, the event bus and every store.
package app

import (
	"fmt"
	"path/filepath"

	"komun/internal/client/api"
	"komun/internal/client/config"
	"komun/internal/client/events"
	"komun/internal/client/fixture"
	"komun/internal/client/logger"
	"komun/internal/client/store"
	apperrors "komun/internal/errors"
	"komun/internal/models"
	"komun/internal/storage"
)

// Session owns the stores of one signed-in (or anonymous) user.
type Session struct {
	Config *config.Config
	Bus    *events.Bus
	Source store.Source

	Auth      *store.AuthStore
	Posts     *store.PostsStore
	Channels  *store.ChannelsStore
	Residents *store.ResidentsStore
	Blocked   *store.BlockedStore
	Reporter  *store.Reporter

	vault *storage.Vault
}

type options struct {
	store     storage.Store
	userAgent string
}

// Option configures Open.
type Option func(*options)

// WithStore uses st for credentials instead of the SQLite vault.
func WithStore(st storage.Store) Option {
	return func(o *options) { o.store = st }
}

// WithUserAgent sets the User-Agent of remote requests.
func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

// Open validates cfg and builds a session.
func Open(cfg *config.Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	st := o.store
	if st == nil {
		var err error
		if st, err = openVault(cfg.VaultPath); err != nil {
			return nil, err
		}
	}
	vault := storage.NewVault(st)

	bus := events.NewBus()
	logger.SetEventBus(bus)
	logger.SetVerbose(cfg.Verbose)

	var src store.Source
	switch cfg.DataSource {
	case config.SourceFixture:
		logger.Debug("Using fixture data source")
		src = fixture.New(vault)
	default:
		clientOpts := []api.Option{api.WithTimeout(cfg.RequestTimeout), api.WithEventBus(bus)}
		if o.userAgent != "" {
			clientOpts = append(clientOpts, api.WithUserAgent(o.userAgent))
		}
		src = api.New(cfg.BaseURL, vault, clientOpts...)
	}

	s := &Session{
		Config:    cfg,
		Bus:       bus,
		Source:    src,
		Auth:      store.NewAuthStore(src, bus),
		Posts:     store.NewPostsStore(src, bus),
		Channels:  store.NewChannelsStore(src, bus, cfg.PollInterval),
		Residents: store.NewResidentsStore(src, bus),
		Reporter:  store.NewReporter(src),
		vault:     vault,
	}
	s.Blocked = store.NewBlockedStore(src, bus, s.Auth.UserID)
	s.Auth.OnLogout(s.resetStores)
	return s, nil
}

func openVault(path string) (storage.Store, error) {
	if path == "" {
		var err error
		if path, err = config.DefaultVaultPath(); err != nil {
			return nil, err
		}
	}
	keys, err := storage.LoadKeys(filepath.Join(filepath.Dir(path), "vault.key"))
	if err != nil {
		return nil, fmt.Errorf("load vault key: %w", err)
	}
	st, err := storage.NewSQLiteStore(path, keys)
	if err != nil {
		return nil, fmt.Errorf("open vault: %w", err)
	}
	return st, nil
}

// resetStores runs after every logout or session loss.
func (s *Session) resetStores() {
	s.Channels.Reset()
	s.Posts.Reset()
	s.Residents.Reset()
	s.Blocked.Reset()
	logger.Debug("Session stores reset")
}

// Check drops the session when err says the server no longer accepts it.
// It returns err unchanged.
func (s *Session) Check(err error) error {
	if apperrors.IsAuthError(err) {
		s.Auth.Expire()
	}
	return err
}

// VisiblePosts returns the feed without posts by blocked users.
func (s *Session) VisiblePosts() []models.Post {
	return store.VisiblePosts(s.Posts.State().Posts, s.Blocked.BlockedIDs())
}

// VisibleMessages returns the open channel's messages without blocked authors.
func (s *Session) VisibleMessages() []models.Message {
	return store.VisibleMessages(s.Channels.State().Messages, s.Blocked.BlockedIDs())
}

// VisibleComments returns the open post's comments without blocked authors.
func (s *Session) VisibleComments() []models.Comment {
	return store.VisibleComments(s.Posts.State().Comments, s.Blocked.BlockedIDs())
}

// Close stops polling and releases the credential store.
func (s *Session) Close() error {
	s.Channels.StopPolling()
	logger.SetEventBus(nil)
	s.Bus.Close()
	return s.vault.Close()
}
