package osm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ericfisherdev/osmpanel/internal/domain/model"
	"github.com/ericfisherdev/osmpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ProfileFetcher = (*UserClient)(nil)

// UserClient implements driven.ProfileFetcher against the OSM API 0.6.
type UserClient struct {
	baseURL string // e.g. "https://api.openstreetmap.org/"
	now     func() time.Time
}

// NewUserClient creates a client for the API rooted at baseURL.
func NewUserClient(baseURL string) *UserClient {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &UserClient{baseURL: baseURL, now: time.Now}
}

// userDetailsResponse mirrors the subset of /api/0.6/user/details.json we use.
type userDetailsResponse struct {
	User struct {
		ID          int64  `json:"id"`
		DisplayName string `json:"display_name"`
		Img         *struct {
			Href string `json:"href"`
		} `json:"img"`
		Changesets struct {
			Count int `json:"count"`
		} `json:"changesets"`
		Messages struct {
			Received struct {
				Count  int `json:"count"`
				Unread int `json:"unread"`
			} `json:"received"`
		} `json:"messages"`
	} `json:"user"`
}

// FetchProfile performs the authenticated self-lookup with the signed client.
// Every failure wraps model.ErrProfileUnavailable.
func (c *UserClient) FetchProfile(ctx context.Context, signed *http.Client) (model.UserProfile, error) {
	endpoint := c.baseURL + "api/0.6/user/details.json"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("%w: build request: %w", model.ErrProfileUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := signed.Do(req)
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("%w: get %s: %w", model.ErrProfileUnavailable, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a bounded amount so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return model.UserProfile{}, fmt.Errorf("%w: get %s: status %d", model.ErrProfileUnavailable, endpoint, resp.StatusCode)
	}

	var body userDetailsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.UserProfile{}, fmt.Errorf("%w: decode user details: %w", model.ErrProfileUnavailable, err)
	}
	if body.User.ID == 0 {
		return model.UserProfile{}, fmt.Errorf("%w: user details without id", model.ErrProfileUnavailable)
	}

	profile := model.UserProfile{
		UserID:         body.User.ID,
		DisplayName:    body.User.DisplayName,
		ChangesetCount: body.User.Changesets.Count,
		UnreadMessages: body.User.Messages.Received.Unread,
		FetchedAt:      c.now(),
	}
	if body.User.Img != nil {
		profile.AvatarURL = body.User.Img.Href
	}

	slog.Debug("osm profile fetched", "user_id", profile.UserID, "changesets", profile.ChangesetCount)

	return profile, nil
}
