package tui

import (
	"strings"
	"testing"
	"time"

	"komun/internal/models"
)

func TestRelativeTime(t *testing.T) {
	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{49 * time.Hour, "2d ago"},
		{30 * 24 * time.Hour, "May 2, 2025"},
	}
	for _, tt := range tests {
		if got := RelativeTime(now.Add(-tt.ago), now); got != tt.want {
			t.Errorf("RelativeTime(-%s): expected %q, got %q", tt.ago, tt.want, got)
		}
	}
}

func TestRenderers(t *testing.T) {
	now := time.Now()
	author := models.Author{ID: "2", FirstName: "Daniel", LastName: "Okafor", ApartmentNumber: "2A"}

	post := Post(models.Post{ID: "7", Title: "Bike room", Content: "Open again", Author: author, LikesCount: 3, CreatedAt: now}, now)
	for _, want := range []string{"#7", "Daniel Okafor (2A)", "Bike room", "Open again", "3"} {
		if !strings.Contains(post, want) {
			t.Errorf("post: expected %q in %q", want, post)
		}
	}

	msg := Messages([]models.Message{{ID: "1", Content: "hi", Author: models.Author{ID: "1", FirstName: "Maya"}, CreatedAt: now}}, "1")
	if !strings.Contains(msg, "You") || strings.Contains(msg, "Maya") {
		t.Errorf("expected own message labelled You, got %q", msg)
	}

	residents := Residents([]models.Resident{{ID: "3", FirstName: "Priya", LastName: "Raman", ApartmentNumber: "3C", Floor: "3"}})
	if !strings.Contains(residents, "Priya Raman") || !strings.Contains(residents, "3C, floor 3") {
		t.Errorf("unexpected residents output %q", residents)
	}

	if got := Blocks(nil); !strings.Contains(got, "not blocked anyone") {
		t.Errorf("unexpected empty blocks output %q", got)
	}
	if got := Posts(nil, now); !strings.Contains(got, "No posts") {
		t.Errorf("unexpected empty feed output %q", got)
	}
}

func TestChannelList(t *testing.T) {
	now := time.Now()
	at := now.Add(-5 * time.Minute)
	out := Channels([]models.Channel{
		{ID: "1", Name: "General", UnreadCount: 2, LastMessagePreview: "Maya: hello", LastMessageAt: &at},
		{ID: "2", Name: "Garden"},
	}, now)
	for _, want := range []string{"General", "(2)", "Maya: hello", "5m ago", "Garden"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
	if got := Channels(nil, now); !strings.Contains(got, "No channels.") {
		t.Errorf("expected empty hint, got %q", got)
	}
}
