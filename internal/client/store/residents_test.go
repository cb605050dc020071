package store

import (
	"context"
	"net/http"
	"testing"

	"komun/internal/client/fixture"
	apperrors "komun/internal/errors"
)

func TestResidentsStore_SearchIsLocal(t *testing.T) {
	src := signedIn(t)
	residents := NewResidentsStore(src, nil)
	if err := residents.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if n := len(residents.State().Filtered); n != 12 {
		t.Fatalf("expected 12 residents, got %d", n)
	}

	tests := []struct {
		query string
		want  int
	}{
		{"thompson", 1},
		{"  MAYA  ", 1},
		{"maya thompson", 1},
		{"4b", 1},
		{"4", 2},
		{"nobody", 0},
		{"", 12},
	}
	for _, tt := range tests {
		if got := residents.Search(tt.query); len(got) != tt.want {
			t.Errorf("Search(%q): expected %d, got %d", tt.query, tt.want, len(got))
		}
	}

	if n := src.Calls(fixture.OpGetResidents); n != 1 {
		t.Errorf("expected a single fetch, got %d", n)
	}
}

func TestResidentsStore_FetchKeepsQuery(t *testing.T) {
	src := signedIn(t)
	residents := NewResidentsStore(src, nil)
	residents.Search("rossi")

	if err := residents.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	st := residents.State()
	if st.Query != "rossi" || len(st.Filtered) != 1 || st.Filtered[0].LastName != "Rossi" {
		t.Errorf("expected query reapplied, got %q with %d results", st.Query, len(st.Filtered))
	}

	residents.ClearSearch()
	if st := residents.State(); st.Query != "" || len(st.Filtered) != 12 {
		t.Errorf("expected full list, got %q with %d results", st.Query, len(st.Filtered))
	}
}

func TestResidentsStore_FetchError(t *testing.T) {
	src := signedIn(t)
	residents := NewResidentsStore(src, nil)

	src.FailNext(fixture.OpGetResidents, &apperrors.HTTPError{Status: http.StatusBadGateway, Message: "Bad Gateway"})
	if err := residents.Fetch(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	st := residents.State()
	if st.Err != "Could not load residents" || st.IsLoading {
		t.Errorf("expected fallback error and loading cleared, got %q loading=%v", st.Err, st.IsLoading)
	}
}
