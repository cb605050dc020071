package store

import (
	"context"
	"slices"
	"strings"
	"sync"

	"komun/internal/client/events"
	apperrors "komun/internal/errors"
	"komun/internal/models"
	"komun/pkg/protocol"
)

// PostsState is a snapshot of the feed.
type PostsState struct {
	Posts         []models.Post
	IsLoading     bool
	IsLoadingMore bool
	Page          int
	HasMore       bool
	Err           string

	CurrentPost       *models.Post
	Comments          []models.Comment
	CommentsPostID    string
	IsLoadingComments bool
	IsCreating        bool
}

// PostsStore owns the feed, the open post and its comments.
type PostsStore struct {
	mu      sync.Mutex
	src     PostSource
	bus     *events.Bus
	state   PostsState
	pending map[string]bool

	// bumped whenever the feed or the current post is replaced wholesale
	feedGen    int
	currentGen int
}

func NewPostsStore(src PostSource, bus *events.Bus) *PostsStore {
	s := &PostsStore{src: src, bus: bus}
	s.Reset()
	return s
}

// Reset returns the store to its initial empty state.
func (s *PostsStore) Reset() {
	s.mu.Lock()
	s.state = PostsState{HasMore: true}
	s.pending = make(map[string]bool)
	s.feedGen++
	s.currentGen++
	s.mu.Unlock()
	s.bus.PublishType(events.EventPostsChanged)
}

// State returns a copy of the current state.
func (s *PostsStore) State() PostsState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Posts = slices.Clone(st.Posts)
	st.Comments = slices.Clone(st.Comments)
	if st.CurrentPost != nil {
		p := *st.CurrentPost
		st.CurrentPost = &p
	}
	return st
}

// FetchFirstPage replaces the feed with page 1. It is a no-op while a
// first-page fetch is already running.
func (s *PostsStore) FetchFirstPage(ctx context.Context, refresh bool) error {
	s.mu.Lock()
	if s.state.IsLoading {
		s.mu.Unlock()
		return nil
	}
	s.state.IsLoading = true
	if refresh {
		s.state.Err = ""
	}
	s.mu.Unlock()

	resp, err := s.src.GetPosts(ctx, 1)

	s.mu.Lock()
	s.state.IsLoading = false
	if err != nil {
		err = apperrors.Normalize(err, "Could not load posts")
		s.state.Err = err.Error()
	} else {
		s.state.Posts = resp.Data
		s.feedGen++
		s.state.Page = 1
		s.state.HasMore = resp.HasMore()
		s.state.Err = ""
	}
	s.mu.Unlock()

	s.bus.PublishType(events.EventPostsChanged)
	return err
}

// FetchNextPage appends the next page. It is a no-op while a next-page
// fetch is running or when the feed has no more pages.
func (s *PostsStore) FetchNextPage(ctx context.Context) error {
	s.mu.Lock()
	if s.state.IsLoadingMore || !s.state.HasMore {
		s.mu.Unlock()
		return nil
	}
	s.state.IsLoadingMore = true
	next := s.state.Page + 1
	s.mu.Unlock()

	resp, err := s.src.GetPosts(ctx, next)

	s.mu.Lock()
	s.state.IsLoadingMore = false
	if err != nil {
		err = apperrors.Normalize(err, "Could not load more posts")
		s.state.Err = err.Error()
	} else {
		s.state.Posts = appendNew(s.state.Posts, resp.Data, func(p models.Post) string { return p.ID })
		s.state.Page = next
		s.state.HasMore = resp.HasMore()
	}
	s.mu.Unlock()

	s.bus.PublishType(events.EventPostsChanged)
	return err
}

// FetchPost loads a single post as the current post.
func (s *PostsStore) FetchPost(ctx context.Context, id string) error {
	post, err := s.src.GetPost(ctx, id)
	if err != nil {
		err = apperrors.Normalize(err, "Could not load the post")
		s.mu.Lock()
		s.state.Err = err.Error()
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.state.CurrentPost = post
	s.currentGen++
	s.mu.Unlock()
	s.bus.PublishType(events.EventPostsChanged)
	return nil
}

// CreatePost publishes a post and puts it at the top of the feed.
func (s *PostsStore) CreatePost(ctx context.Context, content, imagePath string) (*models.Post, error) {
	np := protocol.NewPost{Content: strings.TrimSpace(content), ImagePath: imagePath}
	if err := validateStruct(np); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.state.IsCreating = true
	s.state.Err = ""
	s.mu.Unlock()

	post, err := s.src.CreatePost(ctx, np)

	s.mu.Lock()
	s.state.IsCreating = false
	if err != nil {
		err = apperrors.Normalize(err, "Could not publish the post")
		s.state.Err = err.Error()
		s.mu.Unlock()
		return nil, err
	}
	s.state.Posts = append([]models.Post{*post}, s.state.Posts...)
	s.mu.Unlock()

	s.bus.PublishType(events.EventPostsChanged)
	return post, nil
}

type likeSnapshot struct {
	liked bool
	count int
}

// ToggleLike flips the like on a post optimistically. On failure the exact
// prior values are restored. A second toggle on the same post while the
// first is unresolved is rejected with ErrMutationInFlight.
func (s *PostsStore) ToggleLike(ctx context.Context, postID string) error {
	s.mu.Lock()
	if s.pending[postID] {
		s.mu.Unlock()
		return apperrors.ErrMutationInFlight
	}

	listIdx := slices.IndexFunc(s.state.Posts, func(p models.Post) bool { return p.ID == postID })
	current := s.state.CurrentPost
	if current != nil && current.ID != postID {
		current = nil
	}
	if listIdx < 0 && current == nil {
		s.mu.Unlock()
		return apperrors.ErrNotFound
	}

	var wasLiked bool
	var listPrior, currentPrior likeSnapshot
	if listIdx >= 0 {
		p := &s.state.Posts[listIdx]
		wasLiked = p.LikedByMe
		listPrior = likeSnapshot{p.LikedByMe, p.LikesCount}
		applyLike(p, !wasLiked)
	} else {
		wasLiked = current.LikedByMe
	}
	if current != nil {
		currentPrior = likeSnapshot{current.LikedByMe, current.LikesCount}
		applyLike(current, !wasLiked)
	}
	s.pending[postID] = true
	feedGen, currentGen := s.feedGen, s.currentGen
	s.mu.Unlock()
	s.bus.PublishType(events.EventPostsChanged)

	var err error
	if wasLiked {
		err = s.src.UnlikePost(ctx, postID)
	} else {
		err = s.src.LikePost(ctx, postID)
	}

	s.mu.Lock()
	delete(s.pending, postID)
	// A refetch that landed meanwhile already holds the server's values.
	if err != nil {
		if listIdx >= 0 && feedGen == s.feedGen {
			if i := slices.IndexFunc(s.state.Posts, func(p models.Post) bool { return p.ID == postID }); i >= 0 {
				s.state.Posts[i].LikedByMe = listPrior.liked
				s.state.Posts[i].LikesCount = listPrior.count
			}
		}
		if current != nil && currentGen == s.currentGen && s.state.CurrentPost != nil {
			s.state.CurrentPost.LikedByMe = currentPrior.liked
			s.state.CurrentPost.LikesCount = currentPrior.count
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.bus.PublishType(events.EventPostsChanged)
		return apperrors.Normalize(err, "Could not update the like")
	}
	return nil
}

func applyLike(p *models.Post, liked bool) {
	if p.LikedByMe == liked {
		return
	}
	p.LikedByMe = liked
	if liked {
		p.LikesCount++
	} else {
		p.LikesCount--
	}
}

// FetchComments loads the first page of comments for a post.
func (s *PostsStore) FetchComments(ctx context.Context, postID string) error {
	s.mu.Lock()
	s.state.IsLoadingComments = true
	if s.state.CommentsPostID != postID {
		s.state.Comments = nil
		s.state.CommentsPostID = postID
	}
	s.mu.Unlock()

	resp, err := s.src.GetComments(ctx, postID, 1)

	s.mu.Lock()
	if s.state.CommentsPostID == postID {
		s.state.IsLoadingComments = false
		if err == nil {
			s.state.Comments = resp.Data
		}
	}
	s.mu.Unlock()

	s.bus.PublishType(events.EventCommentsChanged)
	if err != nil {
		return apperrors.Normalize(err, "Could not load comments")
	}
	return nil
}

// AddComment posts a comment and bumps the post's comment count.
func (s *PostsStore) AddComment(ctx context.Context, postID, content string) (*models.Comment, error) {
	req := protocol.ContentRequest{Content: strings.TrimSpace(content)}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	comment, err := s.src.CreateComment(ctx, postID, req.Content)
	if err != nil {
		return nil, apperrors.Normalize(err, "Could not add the comment")
	}

	s.mu.Lock()
	if s.state.CommentsPostID == postID {
		s.state.Comments = append(s.state.Comments, *comment)
	}
	if i := slices.IndexFunc(s.state.Posts, func(p models.Post) bool { return p.ID == postID }); i >= 0 {
		s.state.Posts[i].CommentsCount++
	}
	if s.state.CurrentPost != nil && s.state.CurrentPost.ID == postID {
		s.state.CurrentPost.CommentsCount++
	}
	s.mu.Unlock()

	s.bus.PublishType(events.EventCommentsChanged)
	s.bus.PublishType(events.EventPostsChanged)
	return comment, nil
}

// ClearCurrentPost forgets the open post and its comments.
func (s *PostsStore) ClearCurrentPost() {
	s.mu.Lock()
	s.state.CurrentPost = nil
	s.currentGen++
	s.state.Comments = nil
	s.state.CommentsPostID = ""
	s.mu.Unlock()
	s.bus.PublishType(events.EventPostsChanged)
}

// appendNew appends the items of page whose key is not already in list.
func appendNew[T any](list, page []T, key func(T) string) []T {
	seen := make(map[string]struct{}, len(list))
	for _, item := range list {
		seen[key(item)] = struct{}{}
	}
	for _, item := range page {
		k := key(item)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		list = append(list, item)
	}
	return list
}
