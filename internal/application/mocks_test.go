package application_test

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ericfisherdev/osmpanel/internal/domain/model"
)

// --- OAuth provider ---

type fakeOAuthProvider struct {
	requestToken func(ctx context.Context) (model.TokenPair, error)
	accessToken  func(ctx context.Context, rt model.TokenPair, verifier string) (model.TokenPair, error)

	requestCalls atomic.Int32
	accessCalls  atomic.Int32
}

func (p *fakeOAuthProvider) RequestToken(ctx context.Context) (model.TokenPair, error) {
	p.requestCalls.Add(1)
	return p.requestToken(ctx)
}

func (p *fakeOAuthProvider) AuthorizationURL(requestToken string) (string, error) {
	return "https://provider.test/oauth/authorize?oauth_token=" + url.QueryEscape(requestToken), nil
}

func (p *fakeOAuthProvider) AccessToken(ctx context.Context, rt model.TokenPair, verifier string) (model.TokenPair, error) {
	p.accessCalls.Add(1)
	return p.accessToken(ctx, rt, verifier)
}

func (p *fakeOAuthProvider) Client(_ context.Context, pair model.TokenPair) *http.Client {
	return &http.Client{Transport: signedTransport{pair: pair}}
}

// signedTransport marks a client as bound to a token pair. It never sends.
type signedTransport struct {
	pair model.TokenPair
}

func (signedTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("signedTransport does not send requests")
}

func tokenOf(client *http.Client) string {
	if t, ok := client.Transport.(signedTransport); ok {
		return t.pair.Token
	}
	return ""
}

func staticProvider() *fakeOAuthProvider {
	return &fakeOAuthProvider{
		requestToken: func(context.Context) (model.TokenPair, error) {
			return model.TokenPair{Token: "T1", Secret: "S1"}, nil
		},
		accessToken: func(_ context.Context, rt model.TokenPair, verifier string) (model.TokenPair, error) {
			if rt.Token != "T1" || verifier != "V1" {
				return model.TokenPair{}, errors.New("401 invalid verifier")
			}
			return model.TokenPair{Token: "AT", Secret: "AS"}, nil
		},
	}
}

func testOAuthConfig() model.OAuthConfig {
	return model.NewOAuthConfig("https://provider.test/oauth/", "ck", "cs", "streetcomplete", "oauth")
}

// --- Credential store ---

type memCredentialStore struct {
	mu        sync.Mutex
	pair      model.TokenPair
	updatedAt time.Time
	saveErr   error
	saves     int
}

func (m *memCredentialStore) Save(_ context.Context, pair model.TokenPair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.pair = pair
	m.updatedAt = time.Now()
	m.saves++
	return nil
}

func (m *memCredentialStore) Load(_ context.Context) (model.TokenPair, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pair.IsZero() {
		return model.TokenPair{}, time.Time{}, model.ErrUnauthenticated
	}
	return m.pair, m.updatedAt, nil
}

func (m *memCredentialStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = model.TokenPair{}
	return nil
}

func (m *memCredentialStore) stored() model.TokenPair {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pair
}

// --- Profile ---

type stubProfileFetcher struct {
	fetch func(ctx context.Context, signed *http.Client) (model.UserProfile, error)
	calls atomic.Int32
}

func (s *stubProfileFetcher) FetchProfile(ctx context.Context, signed *http.Client) (model.UserProfile, error) {
	s.calls.Add(1)
	return s.fetch(ctx, signed)
}

func profileOK(id int64, name string) *stubProfileFetcher {
	return &stubProfileFetcher{
		fetch: func(context.Context, *http.Client) (model.UserProfile, error) {
			return model.UserProfile{UserID: id, DisplayName: name, ChangesetCount: 12, UnreadMessages: 1}, nil
		},
	}
}

type memProfileStore struct {
	mu      sync.Mutex
	profile *model.UserProfile
}

func (m *memProfileStore) SaveProfile(_ context.Context, p model.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile = &p
	return nil
}

func (m *memProfileStore) LatestProfile(_ context.Context) (*model.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.profile == nil {
		return nil, nil
	}
	p := *m.profile
	return &p, nil
}

func (m *memProfileStore) ClearProfile(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile = nil
	return nil
}

// --- Statistics ---

type stubStatsFetcher struct {
	mu    sync.Mutex
	fetch func(ctx context.Context, userID int64) (model.StatisticsSnapshot, error)
	calls atomic.Int32
}

func (s *stubStatsFetcher) FetchStatistics(ctx context.Context, userID int64) (model.StatisticsSnapshot, error) {
	s.calls.Add(1)
	s.mu.Lock()
	fetch := s.fetch
	s.mu.Unlock()
	return fetch(ctx, userID)
}

func (s *stubStatsFetcher) set(fetch func(ctx context.Context, userID int64) (model.StatisticsSnapshot, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetch = fetch
}

func statsReturning(edits map[string]int) func(context.Context, int64) (model.StatisticsSnapshot, error) {
	return func(_ context.Context, userID int64) (model.StatisticsSnapshot, error) {
		return model.StatisticsSnapshot{UserID: userID, EditCounts: edits, DaysActive: 3}, nil
	}
}

func statsUnreachable(context.Context, int64) (model.StatisticsSnapshot, error) {
	return model.StatisticsSnapshot{}, model.ErrStatisticsUnavailable
}

type memSnapshotStore struct {
	mu        sync.Mutex
	snapshots map[int64]model.StatisticsSnapshot
}

func (m *memSnapshotStore) SaveSnapshot(_ context.Context, s model.StatisticsSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshots == nil {
		m.snapshots = make(map[int64]model.StatisticsSnapshot)
	}
	m.snapshots[s.UserID] = s
	return nil
}

func (m *memSnapshotStore) LatestSnapshot(_ context.Context, userID int64) (*model.StatisticsSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snapshots[userID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// --- Unlocks ---

// memUnlockStore mirrors the sqlite repository: an achievement record is
// skipped when an equal or higher rank exists, a link record when the link
// exists.
type memUnlockStore struct {
	mu      sync.Mutex
	unlocks model.Unlocks
	appends int
}

func (m *memUnlockStore) ListUnlocks(_ context.Context) (model.Unlocks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unlocks.Merge(model.Unlocks{}), nil
}

func (m *memUnlockStore) AppendUnlocks(_ context.Context, u model.Unlocks) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appends++

	for _, ua := range u.Achievements {
		if m.unlocks.CurrentRanks()[ua.AchievementID] >= ua.Rank {
			continue
		}
		m.unlocks.Achievements = append(m.unlocks.Achievements, ua)
	}
	for _, ul := range u.Links {
		if _, ok := m.unlocks.LinkSet()[ul.LinkID]; ok {
			continue
		}
		m.unlocks.Links = append(m.unlocks.Links, ul)
	}
	return nil
}

func (m *memUnlockStore) snapshot() model.Unlocks {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unlocks.Merge(model.Unlocks{})
}

// --- Catalog ---

func testCatalog() model.Catalog {
	return model.Catalog{
		Achievements: []model.Achievement{
			{
				ID:         "first_edit",
				Condition:  model.Condition{Kind: model.ConditionTotalEdits},
				Thresholds: []int{1},
				Links:      map[int][]string{1: {"wiki"}},
			},
			{
				ID:         "surveyor",
				Condition:  model.Condition{Kind: model.ConditionTotalEdits},
				Thresholds: []int{10, 50, 100},
				Links:      map[int][]string{1: {"learnosm"}, 2: {"forum"}, 3: {"weekly"}},
			},
			{
				ID:         "bicyclist",
				Condition:  model.Condition{Kind: model.ConditionEditsOfTypes, EditTypes: []string{"AddCycleway", "AddBikeParking"}},
				Thresholds: []int{5},
				Links:      map[int][]string{1: {"cyclosm", "wiki"}},
			},
		},
		Links: []model.Link{
			{ID: "wiki", URL: "https://wiki.openstreetmap.org"},
			{ID: "learnosm", URL: "https://learnosm.org"},
			{ID: "forum", URL: "https://community.openstreetmap.org"},
			{ID: "weekly", URL: "https://weeklyosm.eu"},
			{ID: "cyclosm", URL: "https://www.cyclosm.org"},
		},
	}
}
