package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ericfisherdev/osmpanel/internal/domain/model"
	"github.com/ericfisherdev/osmpanel/internal/domain/port/driven"
	"github.com/ericfisherdev/osmpanel/internal/metrics"
)

const syncKey = "session"

// SessionOptions holds the SessionController settings that come from
// configuration.
type SessionOptions struct {
	AvatarCacheDir    string
	StatisticsTimeout time.Duration
}

// SessionController decides whether a user is logged in and keeps the local
// session fresh. A sync sequence loads the credentials, fetches the profile,
// fetches statistics, re-evaluates achievements and publishes the resulting
// session. Sequences never overlap and concurrent Refresh calls share the
// in-flight one.
type SessionController struct {
	creds        *CredentialService
	profiles     driven.ProfileFetcher
	profileStore driven.ProfileStore
	stats        driven.StatisticsFetcher
	snapshots    driven.SnapshotStore
	achievements *AchievementService
	opts         SessionOptions
	now          func() time.Time

	group    singleflight.Group
	seqMu    sync.Mutex // Held for the duration of a sequence, a credential save or a logout.
	flightMu sync.Mutex
	flight   *flight

	mu        sync.Mutex
	current   *model.Session
	listeners map[int]func(model.Session)
	nextID    int
}

// NewSessionController creates a SessionController with all required
// dependencies.
func NewSessionController(
	creds *CredentialService,
	profiles driven.ProfileFetcher,
	profileStore driven.ProfileStore,
	stats driven.StatisticsFetcher,
	snapshots driven.SnapshotStore,
	achievements *AchievementService,
	opts SessionOptions,
) *SessionController {
	if opts.StatisticsTimeout <= 0 {
		opts.StatisticsTimeout = 30 * time.Second
	}
	return &SessionController{
		creds:        creds,
		profiles:     profiles,
		profileStore: profileStore,
		stats:        stats,
		snapshots:    snapshots,
		achievements: achievements,
		opts:         opts,
		now:          time.Now,
		listeners:    make(map[int]func(model.Session)),
	}
}

// OnAuthorized persists the token pair of a completed authorization and then
// provisions the session. A failed save is fatal for the login and reported
// as an AuthorizationError at the persist stage. Later steps degrade the
// session instead of failing it.
func (c *SessionController) OnAuthorized(ctx context.Context, pair model.TokenPair) (model.Session, error) {
	c.seqMu.Lock()
	err := c.creds.Save(ctx, pair)
	c.seqMu.Unlock()
	if err != nil {
		return model.Session{}, &model.AuthorizationError{
			Stage:  model.StagePersist,
			Reason: model.ReasonStorage,
			Err:    err,
		}
	}

	// A flight registered before the save may finish with the old
	// credentials; make sure this call waits for one that started after it.
	c.group.Forget(syncKey)

	slog.Info("credentials saved, provisioning session")
	return c.sync(ctx)
}

// Refresh re-runs the sync sequence with the stored credentials. It returns
// model.ErrUnauthenticated when none are stored.
func (c *SessionController) Refresh(ctx context.Context) (model.Session, error) {
	return c.sync(ctx)
}

// Logout clears the credentials and the current session. Achievement and
// link history is kept.
func (c *SessionController) Logout(ctx context.Context) error {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()

	if err := c.creds.Clear(ctx); err != nil {
		return err
	}
	if err := c.profileStore.ClearProfile(ctx); err != nil {
		slog.Warn("clear cached profile failed", "error", err)
	}
	c.group.Forget(syncKey)

	c.publish(nil)
	slog.Info("logged out")
	return nil
}

// Current returns the last published session, if any.
func (c *SessionController) Current() (model.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return model.Session{}, false
	}
	return *c.current, true
}

// Subscribe registers fn to be called with every published session. A logout
// publishes a session with Authorized set to false. The returned function
// removes the subscription.
func (c *SessionController) Subscribe(fn func(model.Session)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.listeners[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Run refreshes the session immediately, then on every interval tick, until
// ctx is canceled. Ticks without stored credentials are skipped quietly.
func (c *SessionController) Run(ctx context.Context, interval time.Duration) {
	c.refreshLogged(ctx, "initial refresh failed")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session refresh loop stopped")
			return
		case <-ticker.C:
			c.refreshLogged(ctx, "scheduled refresh failed")
		}
	}
}

func (c *SessionController) refreshLogged(ctx context.Context, msg string) {
	_, err := c.Refresh(ctx)
	switch {
	case err == nil:
	case errors.Is(err, model.ErrUnauthenticated):
		slog.Debug("refresh skipped, not logged in")
	case ctx.Err() != nil:
	default:
		slog.Error(msg, "error", err)
	}
}

// sync runs a sequence or joins the one in flight. The shared sequence runs
// under a context detached from any single caller and is canceled once every
// caller waiting on it has given up.
func (c *SessionController) sync(ctx context.Context) (model.Session, error) {
	f := c.joinFlight(ctx)
	defer c.leaveFlight(f)

	ch := c.group.DoChan(syncKey, func() (any, error) {
		c.seqMu.Lock()
		defer c.seqMu.Unlock()
		return c.runSequence(f.ctx)
	})

	select {
	case <-ctx.Done():
		return model.Session{}, ctx.Err()
	case res := <-ch:
		if res.Shared {
			slog.Debug("joined in-flight session sync")
		}
		if ctx.Err() != nil {
			return model.Session{}, ctx.Err()
		}
		if res.Err != nil {
			return model.Session{}, res.Err
		}
		return res.Val.(model.Session), nil
	}
}

// flight is the cancelable context shared by the callers of one sequence.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

func (c *SessionController) joinFlight(ctx context.Context) *flight {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()

	if c.flight == nil {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		c.flight = &flight{ctx: fctx, cancel: cancel}
	}
	c.flight.waiters++
	return c.flight
}

func (c *SessionController) leaveFlight(f *flight) {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if c.flight == f {
		c.flight = nil
		// Callers arriving after this point must not join a canceled sequence.
		c.group.Forget(syncKey)
	}
}

// runSequence performs one sync sequence. c.seqMu must be held.
func (c *SessionController) runSequence(ctx context.Context) (model.Session, error) {
	start := c.now()
	result := "error"
	defer func() {
		metrics.SyncSequences.WithLabelValues(result).Inc()
		metrics.SyncDuration.Observe(time.Since(start).Seconds())
	}()

	client, err := c.creds.SigningClient(ctx)
	if err != nil {
		if errors.Is(err, model.ErrUnauthenticated) {
			result = "unauthenticated"
		}
		return model.Session{}, err
	}

	session := model.Session{
		Authorized:     true,
		AvatarCacheDir: c.opts.AvatarCacheDir,
	}

	// known is the profile the session was built from, fresh or cached.
	var known model.UserProfile
	profile, err := c.profiles.FetchProfile(ctx, client)
	if err != nil {
		if ctx.Err() != nil {
			return model.Session{}, fmt.Errorf("fetch profile: %w", ctx.Err())
		}
		slog.Warn("profile fetch failed, using cached profile", "error", err)
		session.ProfileUnavailable = true

		cached, cerr := c.profileStore.LatestProfile(ctx)
		if cerr != nil {
			slog.Warn("load cached profile failed", "error", cerr)
		} else if cached != nil {
			applyProfile(&session, *cached)
			known = *cached
		}
	} else {
		applyProfile(&session, profile)
		known = profile
		if err := c.profileStore.SaveProfile(ctx, profile); err != nil {
			slog.Warn("cache profile failed", "error", err)
		}
	}

	if session.UserID == 0 {
		session.StatisticsUnavailable = true
		return c.finish(session, &result), nil
	}

	snapshot, fresh := c.statistics(ctx, session.UserID, known)
	if ctx.Err() != nil {
		return model.Session{}, ctx.Err()
	}
	session.StatisticsUnavailable = !fresh
	session.Statistics = snapshot

	if snapshot != nil {
		unlocks, err := c.achievements.Reevaluate(ctx, *snapshot)
		if err != nil {
			if ctx.Err() != nil {
				return model.Session{}, ctx.Err()
			}
			slog.Error("achievement evaluation failed", "user_id", session.UserID, "error", err)
		}
		session.NewUnlocks = unlocks
	}

	return c.finish(session, &result), nil
}

// statistics fetches a fresh snapshot, bounded by the statistics timeout, and
// falls back to the last persisted one. fresh reports whether the fetch
// succeeded. The changeset count is taken from profile, which may be the
// cached one.
func (c *SessionController) statistics(ctx context.Context, userID int64, profile model.UserProfile) (*model.StatisticsSnapshot, bool) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.opts.StatisticsTimeout)
	defer cancel()

	snapshot, err := c.stats.FetchStatistics(fetchCtx, userID)
	if err == nil {
		snapshot.ChangesetCount = profile.ChangesetCount
		if err := c.snapshots.SaveSnapshot(ctx, snapshot); err != nil {
			slog.Warn("persist statistics snapshot failed", "user_id", userID, "error", err)
		}
		return &snapshot, true
	}
	if ctx.Err() != nil {
		return nil, false
	}

	slog.Warn("statistics fetch failed, using last snapshot", "user_id", userID, "error", err)
	stale, serr := c.snapshots.LatestSnapshot(ctx, userID)
	if serr != nil {
		slog.Warn("load statistics snapshot failed", "user_id", userID, "error", serr)
		return nil, false
	}
	return stale, false
}

func (c *SessionController) finish(session model.Session, result *string) model.Session {
	session.UpdatedAt = c.now().UTC()
	if session.Degraded() {
		*result = "degraded"
	} else {
		*result = "ok"
	}

	c.publish(&session)
	slog.Info("session synced",
		"user_id", session.UserID,
		"profile_unavailable", session.ProfileUnavailable,
		"statistics_unavailable", session.StatisticsUnavailable,
		"new_achievements", len(session.NewUnlocks.Achievements),
		"new_links", len(session.NewUnlocks.Links),
	)
	return session
}

// publish replaces the current session (nil for logged out) and notifies
// listeners outside the lock.
func (c *SessionController) publish(session *model.Session) {
	c.mu.Lock()
	c.current = session
	listeners := make([]func(model.Session), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	event := model.Session{}
	if session != nil {
		event = *session
	}
	for _, fn := range listeners {
		fn(event)
	}
}

func applyProfile(s *model.Session, p model.UserProfile) {
	s.UserID = p.UserID
	s.DisplayName = p.DisplayName
	s.AvatarURL = p.AvatarURL
	s.UnreadMessages = p.UnreadMessages
}
