// Package stats implements the StatisticsFetcher port against the edit
// statistics backend.
package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/ericfisherdev/osmpanel/internal/domain/model"
	"github.com/ericfisherdev/osmpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.StatisticsFetcher = (*Client)(nil)

// Client fetches per-user statistics from the backend.
type Client struct {
	http    *http.Client
	baseURL string
	now     func() time.Time
}

// NewClient creates a Client with an ETag-aware in-memory caching transport,
// so repeated refreshes revalidate instead of downloading the payload again.
func NewClient(baseURL string, timeout time.Duration) *Client {
	httpClient := httpcache.NewMemoryCacheTransport().Client()
	httpClient.Timeout = timeout
	return NewClientWithHTTPClient(httpClient, baseURL)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{http: httpClient, baseURL: baseURL, now: time.Now}
}

// statisticsResponse mirrors the backend payload.
type statisticsResponse struct {
	QuestTypes  map[string]int `json:"questTypes"`
	Rank        int            `json:"rank"`
	DaysActive  int            `json:"daysActive"`
	LastUpdate  string         `json:"lastUpdate"`
	IsAnalyzing bool           `json:"isAnalyzing"`
}

// FetchStatistics performs one GET for userID. Every failure wraps
// model.ErrStatisticsUnavailable; none of them affect authentication.
func (c *Client) FetchStatistics(ctx context.Context, userID int64) (model.StatisticsSnapshot, error) {
	endpoint := c.baseURL + "get_statistics.php?" + url.Values{"user_id": {strconv.FormatInt(userID, 10)}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.StatisticsSnapshot{}, fmt.Errorf("%w: build request: %w", model.ErrStatisticsUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return model.StatisticsSnapshot{}, fmt.Errorf("%w: get statistics for user %d: %w", model.ErrStatisticsUnavailable, userID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return model.StatisticsSnapshot{}, fmt.Errorf("%w: get statistics for user %d: status %d", model.ErrStatisticsUnavailable, userID, resp.StatusCode)
	}

	var body statisticsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.StatisticsSnapshot{}, fmt.Errorf("%w: decode statistics for user %d: %w", model.ErrStatisticsUnavailable, userID, err)
	}

	snapshot := model.StatisticsSnapshot{
		UserID:      userID,
		EditCounts:  body.QuestTypes,
		Rank:        body.Rank,
		DaysActive:  body.DaysActive,
		IsAnalyzing: body.IsAnalyzing,
		FetchedAt:   c.now(),
	}
	if snapshot.EditCounts == nil {
		snapshot.EditCounts = map[string]int{}
	}
	if body.LastUpdate != "" {
		if ts, err := time.Parse(time.RFC3339, body.LastUpdate); err == nil {
			snapshot.LastUpdate = ts
		} else {
			slog.Warn("statistics lastUpdate not RFC3339", "user_id", userID, "value", body.LastUpdate)
		}
	}

	slog.Debug("statistics fetched",
		"user_id", userID,
		"edit_types", len(snapshot.EditCounts),
		"total_edits", snapshot.TotalEdits(),
		"from_cache", resp.Header.Get(httpcache.XFromCache) != "",
	)

	return snapshot, nil
}
