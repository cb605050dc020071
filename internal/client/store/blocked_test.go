package store

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"testing"

	"komun/internal/client/fixture"
	apperrors "komun/internal/errors"
	"komun/internal/models"
)

func blockedUsers(blocks []models.Block) []string {
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = b.BlockedUserID
	}
	return out
}

func newBlockedStore(t *testing.T) (*BlockedStore, *fixture.Source) {
	t.Helper()
	src := signedIn(t)
	return NewBlockedStore(src, nil, func() string { return "1" }), src
}

func TestBlockedStore_Block(t *testing.T) {
	blocked, _ := newBlockedStore(t)
	ctx := context.Background()

	if err := blocked.Block(ctx, "1"); !errors.Is(err, apperrors.ErrSelfBlock) {
		t.Errorf("expected ErrSelfBlock, got %v", err)
	}

	for _, id := range []string{"2", "3", "4"} {
		if err := blocked.Block(ctx, id); err != nil {
			t.Fatalf("Block(%s): %v", id, err)
		}
	}
	st := blocked.State()
	if got := blockedUsers(st.Blocks); !slices.Equal(got, []string{"2", "3", "4"}) {
		t.Fatalf("expected [2 3 4], got %v", got)
	}
	for _, b := range st.Blocks {
		if strings.HasPrefix(b.ID, "pending-") {
			t.Errorf("expected server id, got placeholder %s", b.ID)
		}
	}

	if err := blocked.Block(ctx, "3"); !errors.Is(err, apperrors.ErrAlreadyBlocked) {
		t.Errorf("expected ErrAlreadyBlocked, got %v", err)
	}
	if !blocked.IsBlocked("3") || blocked.IsBlocked("5") {
		t.Error("unexpected IsBlocked result")
	}
	if _, ok := blocked.BlockedIDs()["4"]; !ok {
		t.Error("expected 4 in blocked ids")
	}
}

func TestBlockedStore_BlockFailureRemovesPlaceholder(t *testing.T) {
	blocked, src := newBlockedStore(t)
	ctx := context.Background()
	if err := blocked.Block(ctx, "2"); err != nil {
		t.Fatalf("Block: %v", err)
	}

	src.FailNext(fixture.OpCreateBlock, &apperrors.HTTPError{Status: http.StatusInternalServerError})
	if err := blocked.Block(ctx, "5"); err == nil {
		t.Fatal("expected error")
	}
	if got := blockedUsers(blocked.State().Blocks); !slices.Equal(got, []string{"2"}) {
		t.Errorf("expected [2], got %v", got)
	}
}

func TestBlockedStore_BlockInFlight(t *testing.T) {
	blocked, src := newBlockedStore(t)
	ctx := context.Background()

	release := src.Pause(fixture.OpCreateBlock)
	done := make(chan error, 1)
	go func() { done <- blocked.Block(ctx, "6") }()
	waitFor(t, "block call", func() bool { return src.Calls(fixture.OpCreateBlock) == 1 })

	st := blocked.State()
	if len(st.Blocks) != 1 || !strings.HasPrefix(st.Blocks[0].ID, "pending-") {
		t.Fatalf("expected a placeholder block, got %+v", st.Blocks)
	}
	if err := blocked.Block(ctx, "6"); !errors.Is(err, apperrors.ErrMutationInFlight) {
		t.Errorf("expected ErrMutationInFlight, got %v", err)
	}

	release()
	if err := <-done; err != nil {
		t.Fatalf("Block: %v", err)
	}
	if id := blocked.State().Blocks[0].ID; strings.HasPrefix(id, "pending-") {
		t.Errorf("expected placeholder replaced, got %s", id)
	}
}

func TestBlockedStore_UnblockRollbackKeepsOrder(t *testing.T) {
	blocked, src := newBlockedStore(t)
	ctx := context.Background()
	for _, id := range []string{"2", "3", "4"} {
		if err := blocked.Block(ctx, id); err != nil {
			t.Fatalf("Block(%s): %v", id, err)
		}
	}
	middle := blocked.State().Blocks[1].ID

	src.FailNext(fixture.OpDeleteBlock, &apperrors.NetworkError{Op: "unblock", Err: errors.New("connection refused")})
	if err := blocked.Unblock(ctx, middle); err == nil {
		t.Fatal("expected error")
	}
	if got := blockedUsers(blocked.State().Blocks); !slices.Equal(got, []string{"2", "3", "4"}) {
		t.Errorf("expected order restored, got %v", got)
	}

	if err := blocked.Unblock(ctx, middle); err != nil {
		t.Fatalf("Unblock: %v", err)
	}
	if got := blockedUsers(blocked.State().Blocks); !slices.Equal(got, []string{"2", "4"}) {
		t.Errorf("expected [2 4], got %v", got)
	}

	if err := blocked.Unblock(ctx, "unknown"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBlockedStore_UnblockFailureAfterRefetch(t *testing.T) {
	blocked, src := newBlockedStore(t)
	ctx := context.Background()
	for _, id := range []string{"2", "3"} {
		if err := blocked.Block(ctx, id); err != nil {
			t.Fatalf("Block(%s): %v", id, err)
		}
	}
	first := blocked.State().Blocks[0].ID

	release := src.Pause(fixture.OpDeleteBlock)
	src.FailNext(fixture.OpDeleteBlock, &apperrors.HTTPError{Status: 500, Message: "boom"})
	done := make(chan error, 1)
	go func() { done <- blocked.Unblock(ctx, first) }()
	waitFor(t, "unblock call", func() bool { return src.Calls(fixture.OpDeleteBlock) == 1 })

	if err := blocked.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	release()
	if err := <-done; err == nil {
		t.Fatal("expected error")
	}

	if got := blockedUsers(blocked.State().Blocks); !slices.Equal(got, []string{"2", "3"}) {
		t.Errorf("expected [2 3], got %v", got)
	}
}

func TestBlockedStore_UnblockSuccessAfterRefetch(t *testing.T) {
	blocked, src := newBlockedStore(t)
	ctx := context.Background()
	for _, id := range []string{"2", "3"} {
		if err := blocked.Block(ctx, id); err != nil {
			t.Fatalf("Block(%s): %v", id, err)
		}
	}
	first := blocked.State().Blocks[0].ID

	release := src.Pause(fixture.OpDeleteBlock)
	done := make(chan error, 1)
	go func() { done <- blocked.Unblock(ctx, first) }()
	waitFor(t, "unblock call", func() bool { return src.Calls(fixture.OpDeleteBlock) == 1 })

	if err := blocked.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	release()
	if err := <-done; err != nil {
		t.Fatalf("Unblock: %v", err)
	}

	if got := blockedUsers(blocked.State().Blocks); !slices.Equal(got, []string{"3"}) {
		t.Errorf("expected [3], got %v", got)
	}
}

func TestBlockedStore_FetchAndReset(t *testing.T) {
	blocked, src := newBlockedStore(t)
	ctx := context.Background()
	if _, err := src.CreateBlock(ctx, "7"); err != nil {
		t.Fatalf("CreateBlock: %v", err)
	}

	if err := blocked.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !blocked.IsBlocked("7") {
		t.Error("expected 7 blocked after fetch")
	}

	blocked.Reset()
	if len(blocked.State().Blocks) != 0 {
		t.Error("expected empty list after reset")
	}
}
