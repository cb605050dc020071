package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "komun/internal/errors"
	"komun/internal/storage"
	"komun/pkg/protocol"
)

// fakeAPI is a minimal komun server. Only validToken is accepted on
// authenticated routes; a successful refresh rotates it to "fresh".
type fakeAPI struct {
	mu           sync.Mutex
	validToken   string
	refreshToken string

	refreshCalls atomic.Int32
	refreshFails bool
	refreshDelay time.Duration
	alwaysDeny   bool

	lastHeaders http.Header
}

func (f *fakeAPI) authorized(c *gin.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastHeaders = c.Request.Header.Clone()
	if f.alwaysDeny {
		return false
	}
	return c.GetHeader("Authorization") == "Bearer "+f.validToken
}

func (f *fakeAPI) router() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	v1 := r.Group("/api/v1")

	v1.POST("/auth/login", func(c *gin.Context) {
		var req protocol.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Password != "secret" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		f.mu.Lock()
		f.validToken, f.refreshToken = "t1", "r1"
		f.mu.Unlock()
		c.JSON(http.StatusOK, gin.H{
			"access_token":  "t1",
			"refresh_token": "r1",
			"user":          gin.H{"id": "1", "email": req.Email, "first_name": "Ada", "floor": 4},
		})
	})

	v1.POST("/auth/refresh", func(c *gin.Context) {
		f.refreshCalls.Add(1)
		if c.GetHeader("Authorization") != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "refresh must not carry a bearer token"})
			return
		}
		time.Sleep(f.refreshDelay)

		var req protocol.RefreshRequest
		_ = c.ShouldBindJSON(&req)

		f.mu.Lock()
		defer f.mu.Unlock()
		if f.refreshFails || req.RefreshToken != f.refreshToken {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
			return
		}
		f.validToken, f.refreshToken = "fresh", "r2"
		c.JSON(http.StatusOK, gin.H{"access_token": "fresh", "refresh_token": "r2"})
	})

	v1.GET("/profile", func(c *gin.Context) {
		if !f.authorized(c) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": "1", "email": "a@b.com", "floor": "4"})
	})

	v1.GET("/posts", func(c *gin.Context) {
		if !f.authorized(c) {
			c.Status(http.StatusUnauthorized)
			return
		}
		if c.Query("page") == "2" {
			c.JSON(http.StatusOK, gin.H{"data": []gin.H{}, "meta": gin.H{"current_page": 2, "total_pages": 2, "total_count": 1}})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"data": []gin.H{{"id": "p1", "content": "hello", "liked": true, "likes_count": 3, "image_url": nil}},
			"meta": gin.H{"current_page": 1, "total_pages": 2, "total_count": 1},
		})
	})

	v1.POST("/posts", func(c *gin.Context) {
		if !f.authorized(c) {
			c.Status(http.StatusUnauthorized)
			return
		}
		file, err := c.FormFile("image")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "image missing"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"id":        "p9",
			"content":   c.PostForm("content"),
			"image_url": file.Filename + "|" + file.Header.Get("Content-Type"),
		})
	})

	v1.GET("/channels", func(c *gin.Context) {
		if !f.authorized(c) {
			c.Status(http.StatusUnauthorized)
			return
		}
		c.JSON(http.StatusOK, []gin.H{
			{"id": "c1", "name": "General", "last_message": "Ada: hi"},
			{"id": "c2", "name": "Parcels", "last_message": gin.H{"id": "m1", "content": "box", "author": gin.H{"first_name": "Bo"}}},
		})
	})

	v1.POST("/reports", func(c *gin.Context) {
		c.JSON(http.StatusConflict, gin.H{"error": true, "message": "Already reported"})
	})
	v1.DELETE("/blocks/:id", func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Block not found"})
	})
	v1.PATCH("/notifications/:id/read", func(c *gin.Context) {
		c.String(http.StatusInternalServerError, "boom")
	})

	return r
}

func setupClient(t *testing.T, f *fakeAPI) (*Client, *storage.Vault) {
	t.Helper()
	srv := httptest.NewServer(f.router())
	t.Cleanup(srv.Close)

	vault := storage.NewVault(storage.NewMemoryStore())
	return New(srv.URL+"/api/v1", vault, WithUserAgent("komun-test")), vault
}

func TestLogin_PersistsTokens(t *testing.T) {
	f := &fakeAPI{}
	client, vault := setupClient(t, f)

	user, err := client.Login(context.Background(), "a@b.com", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.ID != "1" {
		t.Errorf("expected user id 1, got %q", user.ID)
	}
	if user.Floor != "4" {
		t.Errorf("expected floor 4, got %q", user.Floor)
	}

	access, refresh, _ := vault.Tokens()
	if access != "t1" || refresh != "r1" {
		t.Errorf("expected t1/r1 persisted, got %s/%s", access, refresh)
	}
}

func TestLogin_UnauthorizedDoesNotRefresh(t *testing.T) {
	f := &fakeAPI{}
	client, _ := setupClient(t, f)

	_, err := client.Login(context.Background(), "a@b.com", "wrong")
	if apperrors.StatusCode(err) != http.StatusUnauthorized {
		t.Fatalf("expected HTTP 401, got %v", err)
	}
	if apperrors.IsAuthError(err) {
		t.Error("login failure must not be an AuthError")
	}
	if got := apperrors.UserMessage(err, "fallback"); got != "Invalid credentials" {
		t.Errorf("expected server message, got %q", got)
	}
	if n := f.refreshCalls.Load(); n != 0 {
		t.Errorf("expected no refresh call, got %d", n)
	}
}

func TestRefreshRace_SingleRefresh(t *testing.T) {
	f := &fakeAPI{validToken: "current", refreshToken: "r1", refreshDelay: 50 * time.Millisecond}
	client, vault := setupClient(t, f)
	if err := vault.SetTokens("stale", "r1"); err != nil {
		t.Fatal(err)
	}

	const n = 3
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = client.GetProfile(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("request %d: unexpected error: %v", i, err)
		}
	}
	if calls := f.refreshCalls.Load(); calls != 1 {
		t.Errorf("expected exactly 1 refresh call, got %d", calls)
	}

	access, refresh, _ := vault.Tokens()
	if access != "fresh" || refresh != "r2" {
		t.Errorf("expected rotated tokens fresh/r2, got %s/%s", access, refresh)
	}
}

func TestRefreshFailure_RejectsAllAndClears(t *testing.T) {
	f := &fakeAPI{validToken: "current", refreshToken: "r1", refreshFails: true, refreshDelay: 20 * time.Millisecond}
	client, vault := setupClient(t, f)
	if err := vault.SetTokens("stale", "r1"); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = client.GetProfile(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if !apperrors.IsAuthError(err) {
			t.Errorf("request %d: expected AuthError, got %v", i, err)
		}
	}
	if calls := f.refreshCalls.Load(); calls != 1 {
		t.Errorf("expected exactly 1 refresh call, got %d", calls)
	}
	access, refresh, _ := vault.Tokens()
	if access != "" || refresh != "" {
		t.Errorf("expected credentials cleared, got %q/%q", access, refresh)
	}
}

func TestSecond401_IsAuthError(t *testing.T) {
	f := &fakeAPI{refreshToken: "r1", alwaysDeny: true}
	client, vault := setupClient(t, f)
	if err := vault.SetTokens("stale", "r1"); err != nil {
		t.Fatal(err)
	}

	_, err := client.GetProfile(context.Background())
	if !apperrors.IsAuthError(err) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if calls := f.refreshCalls.Load(); calls != 1 {
		t.Errorf("expected 1 refresh call, got %d", calls)
	}
	if access, _, _ := vault.Tokens(); access != "" {
		t.Errorf("expected credentials cleared, got %q", access)
	}
}

func TestNoRefreshToken_IsAuthError(t *testing.T) {
	f := &fakeAPI{validToken: "current"}
	client, vault := setupClient(t, f)
	if err := vault.SetTokens("stale", ""); err != nil {
		t.Fatal(err)
	}

	_, err := client.GetProfile(context.Background())
	if !apperrors.IsAuthError(err) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if calls := f.refreshCalls.Load(); calls != 0 {
		t.Errorf("expected no refresh call without refresh token, got %d", calls)
	}
}

func TestRequestHeaders(t *testing.T) {
	f := &fakeAPI{validToken: "t1"}
	client, vault := setupClient(t, f)
	vault.SetTokens("t1", "r1")

	if _, err := client.GetProfile(context.Background()); err != nil {
		t.Fatalf("GetProfile: %v", err)
	}

	f.mu.Lock()
	h := f.lastHeaders
	f.mu.Unlock()
	if h.Get("Accept") != "application/json" {
		t.Errorf("expected Accept application/json, got %q", h.Get("Accept"))
	}
	if h.Get("User-Agent") != "komun-test" {
		t.Errorf("expected User-Agent komun-test, got %q", h.Get("User-Agent"))
	}
	if h.Get("X-Request-Id") == "" {
		t.Error("expected X-Request-Id header")
	}
}

func TestGetPosts_Pagination(t *testing.T) {
	f := &fakeAPI{validToken: "t1"}
	client, vault := setupClient(t, f)
	vault.SetTokens("t1", "r1")

	page1, err := client.GetPosts(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetPosts: %v", err)
	}
	if len(page1.Data) != 1 || !page1.Data[0].LikedByMe || page1.Data[0].LikesCount != 3 {
		t.Errorf("unexpected page 1: %+v", page1.Data)
	}
	if !page1.HasMore() {
		t.Error("expected more pages after page 1")
	}

	page2, err := client.GetPosts(context.Background(), 2)
	if err != nil {
		t.Fatalf("GetPosts page 2: %v", err)
	}
	if page2.HasMore() {
		t.Error("expected no more pages after empty page 2")
	}
}

func TestGetChannels_BareArray(t *testing.T) {
	f := &fakeAPI{validToken: "t1"}
	client, vault := setupClient(t, f)
	vault.SetTokens("t1", "r1")

	channels, err := client.GetChannels(context.Background())
	if err != nil {
		t.Fatalf("GetChannels: %v", err)
	}
	if len(channels) != 2 {
		t.Fatalf("expected 2 channels, got %d", len(channels))
	}
	if channels[0].LastMessagePreview != "Ada: hi" {
		t.Errorf("expected string preview, got %q", channels[0].LastMessagePreview)
	}
	if channels[1].LastMessagePreview != "Bo: box" {
		t.Errorf("expected preview from message object, got %q", channels[1].LastMessagePreview)
	}
}

func TestCreatePost_Multipart(t *testing.T) {
	f := &fakeAPI{validToken: "t1"}
	client, vault := setupClient(t, f)
	vault.SetTokens("t1", "r1")

	img := filepath.Join(t.TempDir(), "garden.png")
	if err := os.WriteFile(img, []byte("\x89PNG fake"), 0600); err != nil {
		t.Fatal(err)
	}

	post, err := client.CreatePost(context.Background(), protocol.NewPost{Content: "tomatoes", ImagePath: img})
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if post.Content != "tomatoes" {
		t.Errorf("expected content tomatoes, got %q", post.Content)
	}
	if post.ImageURL != "garden.png|image/png" {
		t.Errorf("unexpected image part: %q", post.ImageURL)
	}
}

func TestErrorMessages(t *testing.T) {
	f := &fakeAPI{validToken: "t1"}
	client, vault := setupClient(t, f)
	vault.SetTokens("t1", "r1")
	ctx := context.Background()

	tests := []struct {
		name       string
		call       func() error
		wantStatus int
		wantMsg    string
	}{
		{
			name: "message field when error is a flag",
			call: func() error {
				return client.CreateReport(ctx, protocol.CreateReportRequest{ContentType: "post", ContentID: "p1", Reason: "spam"})
			},
			wantStatus: http.StatusConflict,
			wantMsg:    "Already reported",
		},
		{
			name:       "error string",
			call:       func() error { return client.DeleteBlock(ctx, "b1") },
			wantStatus: http.StatusNotFound,
			wantMsg:    "Block not found",
		},
		{
			name:       "non-json body",
			call:       func() error { return client.MarkNotificationRead(ctx, "n1") },
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			var httpErr *apperrors.HTTPError
			if !errors.As(err, &httpErr) {
				t.Fatalf("expected HTTPError, got %v", err)
			}
			if httpErr.Status != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, httpErr.Status)
			}
			if httpErr.Message != tt.wantMsg {
				t.Errorf("expected message %q, got %q", tt.wantMsg, httpErr.Message)
			}
		})
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	client := New(base, storage.NewVault(storage.NewMemoryStore()), WithTimeout(time.Second))
	_, err := client.GetProfile(context.Background())
	if !apperrors.IsNetworkError(err) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
}

func TestCanceledContext(t *testing.T) {
	f := &fakeAPI{validToken: "t1"}
	client, vault := setupClient(t, f)
	vault.SetTokens("t1", "r1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetProfile(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
