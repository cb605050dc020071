package store

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"komun/internal/client/fixture"
	apperrors "komun/internal/errors"
	"komun/internal/models"
)

func findPost(t *testing.T, posts []models.Post, id string) models.Post {
	t.Helper()
	for _, p := range posts {
		if p.ID == id {
			return p
		}
	}
	t.Fatalf("post %s not in feed", id)
	return models.Post{}
}

func TestPostsStore_Pagination(t *testing.T) {
	src := signedIn(t, fixture.WithPageSize(3))
	posts := NewPostsStore(src, nil)
	ctx := context.Background()

	if err := posts.FetchFirstPage(ctx, false); err != nil {
		t.Fatalf("FetchFirstPage: %v", err)
	}
	st := posts.State()
	if len(st.Posts) != 3 || st.Page != 1 || !st.HasMore {
		t.Fatalf("expected 3 posts on page 1 with more, got %d page %d more %v", len(st.Posts), st.Page, st.HasMore)
	}

	if err := posts.FetchNextPage(ctx); err != nil {
		t.Fatalf("FetchNextPage: %v", err)
	}
	st = posts.State()
	if len(st.Posts) != 5 || st.Page != 2 || st.HasMore {
		t.Fatalf("expected 5 posts on page 2 without more, got %d page %d more %v", len(st.Posts), st.Page, st.HasMore)
	}

	if err := posts.FetchNextPage(ctx); err != nil {
		t.Fatalf("FetchNextPage at end: %v", err)
	}
	if n := src.Calls(fixture.OpGetPosts); n != 2 {
		t.Errorf("expected no request past the last page, got %d calls", n)
	}
}

func TestPostsStore_FetchFirstPageIgnoredWhileLoading(t *testing.T) {
	src := signedIn(t)
	posts := NewPostsStore(src, nil)
	ctx := context.Background()

	release := src.Pause(fixture.OpGetPosts)
	done := make(chan error, 1)
	go func() { done <- posts.FetchFirstPage(ctx, false) }()
	waitFor(t, "first fetch", func() bool { return src.Calls(fixture.OpGetPosts) == 1 })

	if err := posts.FetchFirstPage(ctx, true); err != nil {
		t.Fatalf("expected nil for ignored fetch, got %v", err)
	}
	if !posts.State().IsLoading {
		t.Error("expected IsLoading while the first fetch runs")
	}

	release()
	if err := <-done; err != nil {
		t.Fatalf("FetchFirstPage: %v", err)
	}
	if n := src.Calls(fixture.OpGetPosts); n != 1 {
		t.Errorf("expected 1 request, got %d", n)
	}
	if posts.State().IsLoading {
		t.Error("expected IsLoading cleared")
	}
}

func TestPostsStore_FetchFirstPageError(t *testing.T) {
	src := signedIn(t)
	posts := NewPostsStore(src, nil)

	src.FailNext(fixture.OpGetPosts, &apperrors.HTTPError{Status: http.StatusInternalServerError, Message: "Internal Server Error"})
	if err := posts.FetchFirstPage(context.Background(), false); err == nil {
		t.Fatal("expected error")
	}
	st := posts.State()
	if st.Err != "Could not load posts" {
		t.Errorf("expected fallback message, got %q", st.Err)
	}
	if st.IsLoading {
		t.Error("expected IsLoading cleared")
	}

	if err := posts.FetchFirstPage(context.Background(), true); err != nil {
		t.Fatalf("FetchFirstPage: %v", err)
	}
	if st := posts.State(); st.Err != "" || len(st.Posts) == 0 {
		t.Errorf("expected posts and no error after retry, got %d posts err %q", len(st.Posts), st.Err)
	}
}

func TestPostsStore_ToggleLike(t *testing.T) {
	src := signedIn(t)
	posts := NewPostsStore(src, nil)
	ctx := context.Background()
	if err := posts.FetchFirstPage(ctx, false); err != nil {
		t.Fatalf("FetchFirstPage: %v", err)
	}
	before := findPost(t, posts.State().Posts, "2")

	if err := posts.ToggleLike(ctx, "2"); err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}
	after := findPost(t, posts.State().Posts, "2")
	if after.LikedByMe != !before.LikedByMe || after.LikesCount != before.LikesCount+1 {
		t.Errorf("expected liked with %d likes, got %v with %d", before.LikesCount+1, after.LikedByMe, after.LikesCount)
	}
	if n := src.Calls(fixture.OpLikePost); n != 1 {
		t.Errorf("expected 1 like call, got %d", n)
	}

	if err := posts.ToggleLike(ctx, "2"); err != nil {
		t.Fatalf("ToggleLike back: %v", err)
	}
	if p := findPost(t, posts.State().Posts, "2"); p.LikedByMe != before.LikedByMe || p.LikesCount != before.LikesCount {
		t.Errorf("expected original like state, got %v with %d", p.LikedByMe, p.LikesCount)
	}
	if n := src.Calls(fixture.OpUnlikePost); n != 1 {
		t.Errorf("expected 1 unlike call, got %d", n)
	}
}

func TestPostsStore_ToggleLikeRollback(t *testing.T) {
	src := signedIn(t)
	posts := NewPostsStore(src, nil)
	ctx := context.Background()
	if err := posts.FetchFirstPage(ctx, false); err != nil {
		t.Fatalf("FetchFirstPage: %v", err)
	}
	if err := posts.FetchPost(ctx, "1"); err != nil {
		t.Fatalf("FetchPost: %v", err)
	}
	before := findPost(t, posts.State().Posts, "1")

	src.FailNext(fixture.OpUnlikePost, &apperrors.NetworkError{Op: "unlike", Err: errors.New("connection reset by peer")})
	err := posts.ToggleLike(ctx, "1")
	if err == nil {
		t.Fatal("expected error")
	}
	if !apperrors.IsNetworkError(err) {
		t.Errorf("expected network error to be preserved, got %v", err)
	}

	st := posts.State()
	after := findPost(t, st.Posts, "1")
	if after.LikedByMe != before.LikedByMe || after.LikesCount != before.LikesCount {
		t.Errorf("expected %v/%d restored, got %v/%d", before.LikedByMe, before.LikesCount, after.LikedByMe, after.LikesCount)
	}
	if st.CurrentPost.LikedByMe != before.LikedByMe || st.CurrentPost.LikesCount != before.LikesCount {
		t.Errorf("expected current post restored, got %v/%d", st.CurrentPost.LikedByMe, st.CurrentPost.LikesCount)
	}
}

func TestPostsStore_ToggleLikeInFlight(t *testing.T) {
	src := signedIn(t)
	posts := NewPostsStore(src, nil)
	ctx := context.Background()
	if err := posts.FetchFirstPage(ctx, false); err != nil {
		t.Fatalf("FetchFirstPage: %v", err)
	}

	release := src.Pause(fixture.OpLikePost)
	done := make(chan error, 1)
	go func() { done <- posts.ToggleLike(ctx, "2") }()
	waitFor(t, "like call", func() bool { return src.Calls(fixture.OpLikePost) == 1 })

	if err := posts.ToggleLike(ctx, "2"); !errors.Is(err, apperrors.ErrMutationInFlight) {
		t.Errorf("expected ErrMutationInFlight, got %v", err)
	}
	if err := posts.ToggleLike(ctx, "3"); err != nil {
		t.Errorf("expected other post unaffected, got %v", err)
	}

	release()
	if err := <-done; err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}
	if n := src.Calls(fixture.OpUnlikePost); n != 1 {
		t.Errorf("expected only the post 3 unlike, got %d", n)
	}
}

func TestPostsStore_ToggleLikeFailureKeepsRefetchedValues(t *testing.T) {
	src := signedIn(t)
	posts := NewPostsStore(src, nil)
	ctx := context.Background()
	if err := posts.FetchFirstPage(ctx, false); err != nil {
		t.Fatalf("FetchFirstPage: %v", err)
	}
	if err := posts.FetchPost(ctx, "2"); err != nil {
		t.Fatalf("FetchPost: %v", err)
	}
	before := findPost(t, posts.State().Posts, "2")

	release := src.Pause(fixture.OpLikePost)
	src.FailNext(fixture.OpLikePost, &apperrors.HTTPError{Status: 500, Message: "boom"})
	done := make(chan error, 1)
	go func() { done <- posts.ToggleLike(ctx, "2") }()
	waitFor(t, "like call", func() bool { return src.Calls(fixture.OpLikePost) == 1 })

	src.LikeFromResident("2")
	if err := posts.FetchFirstPage(ctx, true); err != nil {
		t.Fatalf("FetchFirstPage: %v", err)
	}
	if err := posts.FetchPost(ctx, "2"); err != nil {
		t.Fatalf("FetchPost: %v", err)
	}

	release()
	if err := <-done; err == nil {
		t.Fatal("expected error")
	}

	want := before.LikesCount + 1
	st := posts.State()
	after := findPost(t, st.Posts, "2")
	if after.LikedByMe || after.LikesCount != want {
		t.Errorf("expected refetched false/%d, got %v/%d", want, after.LikedByMe, after.LikesCount)
	}
	if st.CurrentPost.LikedByMe || st.CurrentPost.LikesCount != want {
		t.Errorf("expected refetched current post false/%d, got %v/%d", want, st.CurrentPost.LikedByMe, st.CurrentPost.LikesCount)
	}
}

func TestPostsStore_ToggleLikeUnknownPost(t *testing.T) {
	posts := NewPostsStore(signedIn(t), nil)
	if err := posts.ToggleLike(context.Background(), "missing"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPostsStore_CreatePost(t *testing.T) {
	src := signedIn(t)
	posts := NewPostsStore(src, nil)
	ctx := context.Background()
	if err := posts.FetchFirstPage(ctx, false); err != nil {
		t.Fatalf("FetchFirstPage: %v", err)
	}

	if _, err := posts.CreatePost(ctx, "   ", ""); !apperrors.IsValidationError(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if n := src.Calls(fixture.OpCreatePost); n != 0 {
		t.Errorf("expected no create call, got %d", n)
	}

	post, err := posts.CreatePost(ctx, " Lost keys near the bins ", "")
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	st := posts.State()
	if st.Posts[0].ID != post.ID {
		t.Errorf("expected new post first, got %s", st.Posts[0].ID)
	}
	if st.Posts[0].Content != "Lost keys near the bins" {
		t.Errorf("expected trimmed content, got %q", st.Posts[0].Content)
	}
	if st.IsCreating {
		t.Error("expected IsCreating cleared")
	}
}

func TestPostsStore_Comments(t *testing.T) {
	src := signedIn(t)
	posts := NewPostsStore(src, nil)
	ctx := context.Background()
	if err := posts.FetchFirstPage(ctx, false); err != nil {
		t.Fatalf("FetchFirstPage: %v", err)
	}
	if err := posts.FetchComments(ctx, "1"); err != nil {
		t.Fatalf("FetchComments: %v", err)
	}
	if n := len(posts.State().Comments); n != 3 {
		t.Fatalf("expected 3 comments, got %d", n)
	}
	before := findPost(t, posts.State().Posts, "1").CommentsCount

	if _, err := posts.AddComment(ctx, "1", "See you at the potluck"); err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	st := posts.State()
	if len(st.Comments) != 4 {
		t.Errorf("expected 4 comments, got %d", len(st.Comments))
	}
	if got := findPost(t, st.Posts, "1").CommentsCount; got != before+1 {
		t.Errorf("expected comment count %d, got %d", before+1, got)
	}

	posts.ClearCurrentPost()
	if st := posts.State(); st.Comments != nil || st.CommentsPostID != "" {
		t.Error("expected comments cleared")
	}
}

func TestPostsStore_Reset(t *testing.T) {
	posts := NewPostsStore(signedIn(t), nil)
	if err := posts.FetchFirstPage(context.Background(), false); err != nil {
		t.Fatalf("FetchFirstPage: %v", err)
	}
	posts.Reset()
	st := posts.State()
	if len(st.Posts) != 0 || st.Page != 0 || !st.HasMore {
		t.Errorf("expected empty state, got %d posts page %d more %v", len(st.Posts), st.Page, st.HasMore)
	}
}

func TestAppendNew(t *testing.T) {
	key := func(s string) string { return s }
	got := appendNew([]string{"a", "b"}, []string{"b", "c", "c", "d"}, key)
	want := []string{"a", "b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}
