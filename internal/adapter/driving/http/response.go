package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/osmpanel/internal/application"
	"github.com/ericfisherdev/osmpanel/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body. Stage and Reason are
// set for authorization failures.
type errorResponse struct {
	Error  string `json:"error"`
	Stage  string `json:"stage,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// FlowResponse is the JSON representation of the authorization flow state.
type FlowResponse struct {
	FlowID       string `json:"flow_id,omitempty"`
	State        string `json:"state"`
	AuthorizeURL string `json:"authorize_url,omitempty"`
}

// CallbackRequest is the JSON body for the callback endpoint: the full
// redirect URI the provider sent the user to.
type CallbackRequest struct {
	CallbackURI string `json:"callback_uri"`
}

// SessionResponse is the JSON representation of the current session.
type SessionResponse struct {
	UserID                int64               `json:"user_id"`
	DisplayName           string              `json:"display_name"`
	AvatarURL             string              `json:"avatar_url,omitempty"`
	AvatarCacheDir        string              `json:"avatar_cache_dir,omitempty"`
	UnreadMessages        int                 `json:"unread_messages"`
	Authorized            bool                `json:"authorized"`
	ProfileUnavailable    bool                `json:"profile_unavailable"`
	StatisticsUnavailable bool                `json:"statistics_unavailable"`
	Statistics            *StatisticsResponse `json:"statistics"`
	NewAchievements       []UnlockResponse    `json:"new_achievements"`
	NewLinks              []string            `json:"new_links"`
	UpdatedAt             string              `json:"updated_at"`
}

// StatisticsResponse is the JSON representation of a statistics snapshot.
type StatisticsResponse struct {
	TotalEdits     int            `json:"total_edits"`
	EditCounts     map[string]int `json:"edit_counts"`
	ChangesetCount int            `json:"changeset_count"`
	Rank           int            `json:"rank"`
	DaysActive     int            `json:"days_active"`
	IsAnalyzing    bool           `json:"is_analyzing"`
	LastUpdate     string         `json:"last_update,omitempty"`
	FetchedAt      string         `json:"fetched_at"`
}

// UnlockResponse is one achievement rank unlock.
type UnlockResponse struct {
	AchievementID string `json:"achievement_id"`
	Rank          int    `json:"rank"`
}

// AchievementResponse is a catalog achievement with the user's progress.
type AchievementResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Rank        int    `json:"rank"`
	MaxRank     int    `json:"max_rank"`
	Thresholds  []int  `json:"thresholds"`
	UnlockedAt  string `json:"unlocked_at,omitempty"`
}

// LinkResponse is a catalog link with its unlock state.
type LinkResponse struct {
	ID            string `json:"id"`
	URL           string `json:"url,omitempty"`
	Title         string `json:"title"`
	Category      string `json:"category"`
	Unlocked      bool   `json:"unlocked"`
	AchievementID string `json:"achievement_id,omitempty"`
	UnlockedAt    string `json:"unlocked_at,omitempty"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

func toFlowResponse(s application.FlowStatus) FlowResponse {
	return FlowResponse{
		FlowID:       s.ID,
		State:        string(s.State),
		AuthorizeURL: s.AuthorizeURL,
	}
}

// toSessionResponse converts a domain Session to its JSON representation.
// Slices are never nil so clients always see arrays.
func toSessionResponse(s model.Session) SessionResponse {
	resp := SessionResponse{
		UserID:                s.UserID,
		DisplayName:           s.DisplayName,
		AvatarURL:             s.AvatarURL,
		AvatarCacheDir:        s.AvatarCacheDir,
		UnreadMessages:        s.UnreadMessages,
		Authorized:            s.Authorized,
		ProfileUnavailable:    s.ProfileUnavailable,
		StatisticsUnavailable: s.StatisticsUnavailable,
		NewAchievements:       make([]UnlockResponse, 0, len(s.NewUnlocks.Achievements)),
		NewLinks:              make([]string, 0, len(s.NewUnlocks.Links)),
		UpdatedAt:             formatTime(s.UpdatedAt),
	}
	if s.Statistics != nil {
		st := toStatisticsResponse(*s.Statistics)
		resp.Statistics = &st
	}
	for _, ua := range s.NewUnlocks.Achievements {
		resp.NewAchievements = append(resp.NewAchievements, UnlockResponse{AchievementID: ua.AchievementID, Rank: ua.Rank})
	}
	for _, ul := range s.NewUnlocks.Links {
		resp.NewLinks = append(resp.NewLinks, ul.LinkID)
	}
	return resp
}

func toStatisticsResponse(s model.StatisticsSnapshot) StatisticsResponse {
	counts := s.EditCounts
	if counts == nil {
		counts = map[string]int{}
	}
	return StatisticsResponse{
		TotalEdits:     s.TotalEdits(),
		EditCounts:     counts,
		ChangesetCount: s.ChangesetCount,
		Rank:           s.Rank,
		DaysActive:     s.DaysActive,
		IsAnalyzing:    s.IsAnalyzing,
		LastUpdate:     formatTime(s.LastUpdate),
		FetchedAt:      formatTime(s.FetchedAt),
	}
}

func toAchievementResponse(p application.AchievementProgress) AchievementResponse {
	thresholds := p.Achievement.Thresholds
	if thresholds == nil {
		thresholds = []int{}
	}
	return AchievementResponse{
		ID:          p.Achievement.ID,
		Title:       p.Achievement.Title,
		Description: p.Achievement.Description,
		Rank:        p.Rank,
		MaxRank:     p.Achievement.MaxRank(),
		Thresholds:  thresholds,
		UnlockedAt:  formatTime(p.UnlockedAt),
	}
}

// toLinkResponse converts a link to JSON. The URL of a locked link is withheld.
func toLinkResponse(p application.LinkProgress) LinkResponse {
	resp := LinkResponse{
		ID:       p.Link.ID,
		Title:    p.Link.Title,
		Category: p.Link.Category,
	}
	if p.Unlocked != nil {
		resp.URL = p.Link.URL
		resp.Unlocked = true
		resp.AchievementID = p.Unlocked.AchievementID
		resp.UnlockedAt = formatTime(p.Unlocked.UnlockedAt)
	}
	return resp
}

// formatTime renders t as RFC 3339 in UTC, or "" for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
