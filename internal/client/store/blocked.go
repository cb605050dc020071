package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"komun/internal/client/events"
	apperrors "komun/internal/errors"
	"komun/internal/models"
)

type BlockedState struct {
	Blocks    []models.Block
	IsLoading bool
	Err       string
}

// BlockedStore owns the signed-in user's block list.
type BlockedStore struct {
	mu      sync.Mutex
	src     BlockSource
	bus     *events.Bus
	self    func() string
	state   BlockedState
	pending map[string]bool // by blocked user id
}

// NewBlockedStore creates the store. self returns the signed-in user's id
// and may be nil.
func NewBlockedStore(src BlockSource, bus *events.Bus, self func() string) *BlockedStore {
	return &BlockedStore{src: src, bus: bus, self: self, pending: make(map[string]bool)}
}

func (s *BlockedStore) Reset() {
	s.mu.Lock()
	s.state = BlockedState{}
	s.pending = make(map[string]bool)
	s.mu.Unlock()
	s.bus.PublishType(events.EventBlocksChanged)
}

func (s *BlockedStore) State() BlockedState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Blocks = slices.Clone(st.Blocks)
	return st
}

// BlockedIDs returns the set of blocked user ids.
func (s *BlockedStore) BlockedIDs() map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make(map[string]struct{}, len(s.state.Blocks))
	for _, b := range s.state.Blocks {
		ids[b.BlockedUserID] = struct{}{}
	}
	return ids
}

func (s *BlockedStore) IsBlocked(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexByUser(userID) >= 0
}

func (s *BlockedStore) Fetch(ctx context.Context) error {
	s.mu.Lock()
	if s.state.IsLoading {
		s.mu.Unlock()
		return nil
	}
	s.state.IsLoading = true
	s.state.Err = ""
	s.mu.Unlock()

	blocks, err := s.src.GetBlocks(ctx)

	s.mu.Lock()
	s.state.IsLoading = false
	if err != nil {
		err = apperrors.Normalize(err, "Could not load blocked users")
		s.state.Err = err.Error()
	} else {
		s.state.Blocks = blocks
	}
	s.mu.Unlock()

	s.bus.PublishType(events.EventBlocksChanged)
	return err
}

// Block adds a placeholder immediately and swaps in the server's record on
// success. On failure the placeholder is removed.
func (s *BlockedStore) Block(ctx context.Context, userID string) error {
	if s.self != nil && userID == s.self() {
		return apperrors.ErrSelfBlock
	}

	s.mu.Lock()
	if s.pending[userID] {
		s.mu.Unlock()
		return apperrors.ErrMutationInFlight
	}
	if s.indexByUser(userID) >= 0 {
		s.mu.Unlock()
		return apperrors.ErrAlreadyBlocked
	}
	placeholder := models.Block{
		ID:            "pending-" + uuid.NewString(),
		BlockedUserID: userID,
		BlockedUser:   models.Author{ID: userID},
		CreatedAt:     time.Now(),
	}
	s.state.Blocks = append(s.state.Blocks, placeholder)
	s.pending[userID] = true
	s.mu.Unlock()
	s.bus.PublishType(events.EventBlocksChanged)

	block, err := s.src.CreateBlock(ctx, userID)

	s.mu.Lock()
	delete(s.pending, userID)
	i := slices.IndexFunc(s.state.Blocks, func(b models.Block) bool { return b.ID == placeholder.ID })
	switch {
	case i >= 0 && err != nil:
		s.state.Blocks = slices.Delete(s.state.Blocks, i, i+1)
	case i >= 0:
		s.state.Blocks[i] = *block
	case err == nil && s.indexByUser(userID) < 0:
		// a refetch dropped the placeholder before the server had the block
		s.state.Blocks = append(s.state.Blocks, *block)
	}
	s.mu.Unlock()
	s.bus.PublishType(events.EventBlocksChanged)

	if err != nil {
		return apperrors.Normalize(err, "Could not block this user")
	}
	return nil
}

// Unblock removes the block immediately and reinserts it at its original
// position on failure, unless a refetch already brought it back.
func (s *BlockedStore) Unblock(ctx context.Context, blockID string) error {
	s.mu.Lock()
	i := slices.IndexFunc(s.state.Blocks, func(b models.Block) bool { return b.ID == blockID })
	if i < 0 {
		s.mu.Unlock()
		return apperrors.ErrNotFound
	}
	removed := s.state.Blocks[i]
	if s.pending[removed.BlockedUserID] {
		s.mu.Unlock()
		return apperrors.ErrMutationInFlight
	}
	s.state.Blocks = slices.Delete(s.state.Blocks, i, i+1)
	s.pending[removed.BlockedUserID] = true
	s.mu.Unlock()
	s.bus.PublishType(events.EventBlocksChanged)

	err := s.src.DeleteBlock(ctx, blockID)

	s.mu.Lock()
	delete(s.pending, removed.BlockedUserID)
	j := s.indexByUser(removed.BlockedUserID)
	switch {
	case err != nil && j < 0:
		s.state.Blocks = slices.Insert(s.state.Blocks, min(i, len(s.state.Blocks)), removed)
	case err == nil && j >= 0 && s.state.Blocks[j].ID == blockID:
		s.state.Blocks = slices.Delete(s.state.Blocks, j, j+1)
	}
	s.mu.Unlock()

	if err != nil {
		s.bus.PublishType(events.EventBlocksChanged)
		return apperrors.Normalize(err, "Could not unblock this user")
	}
	return nil
}

func (s *BlockedStore) indexByUser(userID string) int {
	return slices.IndexFunc(s.state.Blocks, func(b models.Block) bool { return b.BlockedUserID == userID })
}
