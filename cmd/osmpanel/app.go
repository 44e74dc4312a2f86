package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	catalogadapter "github.com/ericfisherdev/osmpanel/internal/adapter/driven/catalog"
	osmadapter "github.com/ericfisherdev/osmpanel/internal/adapter/driven/osm"
	sqliteadapter "github.com/ericfisherdev/osmpanel/internal/adapter/driven/sqlite"
	statsadapter "github.com/ericfisherdev/osmpanel/internal/adapter/driven/stats"
	"github.com/ericfisherdev/osmpanel/internal/application"
	"github.com/ericfisherdev/osmpanel/internal/config"
)

// app is the composed object graph shared by all commands.
type app struct {
	cfg          *config.Config
	db           *sqliteadapter.DB
	creds        *application.CredentialService
	login        *application.LoginService
	session      *application.SessionController
	achievements *application.AchievementService
}

// newApp opens the database, runs migrations and wires adapters into the
// application services.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	// 1. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	slog.Debug("database opened", "path", cfg.DBPath)

	// 2. Run migrations on writer connection.
	version, err := sqliteadapter.RunMigrations(db.Writer)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Debug("migrations complete", "version", version)

	// 3. Load the achievement catalog.
	catalog, err := catalogadapter.Load(cfg.AchievementsFile)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Debug("achievement catalog loaded",
		"achievements", len(catalog.Achievements),
		"links", len(catalog.Links),
	)

	if !cfg.HasSecretKey() {
		slog.Warn("OSMPANEL_SECRET_KEY not set, login is disabled until it is configured")
	}

	// 4. Wire adapters.
	oauthCfg := cfg.OAuthConfig()
	provider := osmadapter.NewOAuthProvider(oauthCfg, &http.Client{Timeout: 30 * time.Second})
	credentialStore := sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)
	profileStore := sqliteadapter.NewProfileRepo(db)
	snapshotStore := sqliteadapter.NewSnapshotRepo(db)
	unlockStore := sqliteadapter.NewUnlockRepo(db)
	statsFetcher := statsadapter.NewCachedFetcher(
		statsadapter.NewClient(cfg.StatisticsURL, cfg.StatisticsTimeout),
		cfg.StatisticsCacheTTL,
	)

	// 5. Application services.
	creds := application.NewCredentialService(credentialStore, provider, oauthCfg)
	achievements := application.NewAchievementService(catalog, unlockStore)
	session := application.NewSessionController(
		creds,
		osmadapter.NewUserClient(cfg.APIBaseURL),
		profileStore,
		statsFetcher,
		snapshotStore,
		achievements,
		application.SessionOptions{
			AvatarCacheDir:    cfg.AvatarDir,
			StatisticsTimeout: cfg.StatisticsTimeout,
		},
	)
	login := application.NewLoginService(application.NewAuthFlow(provider, oauthCfg), session)

	return &app{
		cfg:          cfg,
		db:           db,
		creds:        creds,
		login:        login,
		session:      session,
		achievements: achievements,
	}, nil
}

// Close releases the database.
func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// withApp loads configuration, builds the app and runs fn with it.
func withApp(ctx context.Context, opts *rootOptions, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer a.Close()

	return fn(ctx, a)
}
