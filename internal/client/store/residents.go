package store

import (
	"context"
	"slices"
	"strings"
	"sync"

	"komun/internal/client/events"
	apperrors "komun/internal/errors"
	"komun/internal/models"
)

type ResidentsState struct {
	Residents []models.Resident
	Filtered  []models.Resident
	Query     string
	IsLoading bool
	Err       string
}

// ResidentsStore caches the directory and filters it locally.
type ResidentsStore struct {
	mu    sync.Mutex
	src   ResidentSource
	bus   *events.Bus
	state ResidentsState
}

func NewResidentsStore(src ResidentSource, bus *events.Bus) *ResidentsStore {
	return &ResidentsStore{src: src, bus: bus}
}

func (s *ResidentsStore) Reset() {
	s.mu.Lock()
	s.state = ResidentsState{}
	s.mu.Unlock()
	s.bus.PublishType(events.EventResidentsChanged)
}

func (s *ResidentsStore) State() ResidentsState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Residents = slices.Clone(st.Residents)
	st.Filtered = slices.Clone(st.Filtered)
	return st
}

// Fetch loads the full directory and reapplies the current query.
func (s *ResidentsStore) Fetch(ctx context.Context) error {
	s.mu.Lock()
	if s.state.IsLoading {
		s.mu.Unlock()
		return nil
	}
	s.state.IsLoading = true
	s.state.Err = ""
	s.mu.Unlock()

	residents, err := s.src.GetResidents(ctx, "")

	s.mu.Lock()
	s.state.IsLoading = false
	if err != nil {
		err = apperrors.Normalize(err, "Could not load residents")
		s.state.Err = err.Error()
	} else {
		s.state.Residents = residents
		s.state.Filtered = filterResidents(residents, s.state.Query)
	}
	s.mu.Unlock()

	s.bus.PublishType(events.EventResidentsChanged)
	return err
}

// Search filters the cached directory by name, apartment or floor.
// It never touches the network.
func (s *ResidentsStore) Search(query string) []models.Resident {
	s.mu.Lock()
	s.state.Query = query
	s.state.Filtered = filterResidents(s.state.Residents, query)
	out := slices.Clone(s.state.Filtered)
	s.mu.Unlock()

	s.bus.PublishType(events.EventResidentsChanged)
	return out
}

func (s *ResidentsStore) ClearSearch() {
	s.Search("")
}

func filterResidents(residents []models.Resident, query string) []models.Resident {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return slices.Clone(residents)
	}

	var out []models.Resident
	for _, r := range residents {
		fields := []string{
			r.FirstName + " " + r.LastName,
			r.Apartment,
			r.ApartmentNumber,
			string(r.Floor),
		}
		for _, f := range fields {
			if f != "" && strings.Contains(strings.ToLower(f), q) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}
