package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	httphandler "github.com/ericfisherdev/osmpanel/internal/adapter/driving/http"
	"github.com/ericfisherdev/osmpanel/internal/config"
	"github.com/ericfisherdev/osmpanel/internal/domain/model"
	"github.com/ericfisherdev/osmpanel/internal/domain/port/driven"
	"github.com/ericfisherdev/osmpanel/internal/metrics"
)

type rootOptions struct {
	envFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "osmpanel",
		Short:         "OpenStreetMap login, edit statistics and achievements",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "optional .env file with OSMPANEL_* variables")

	root.AddCommand(
		newServeCmd(opts),
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newRefreshCmd(opts),
		newStatusCmd(opts),
	)
	return root
}

// loadConfig reads the .env file and the environment and configures the
// default logger.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level})))
	slog.Debug("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"oauth_base_url", cfg.OAuthBaseURL,
		"statistics_url", cfg.StatisticsURL,
		"refresh_interval", cfg.RefreshInterval,
	)
	return cfg, nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local HTTP API and the periodic session refresh",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup signal-based context (SIGINT, SIGTERM).
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withApp(ctx, opts, serve)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	go a.session.Run(ctx, a.cfg.RefreshInterval)

	apiHandler := httphandler.NewHandler(a.login, a.session, a.achievements, slog.Default())
	srv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(apiHandler, prometheus.DefaultGatherer, slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", a.cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("osmpanel started",
		"listen_addr", a.cfg.ListenAddr,
		"refresh_interval", a.cfg.RefreshInterval,
	)

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

func newLoginCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authorize osmpanel with your OpenStreetMap account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app) error {
				return login(ctx, a, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
}

func login(ctx context.Context, a *app, in io.Reader, out io.Writer) error {
	authURL, err := a.login.Begin(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Open this address in a browser and allow access:")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  "+authURL)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Then paste the address you were sent to (starts with %s):\n> ", a.cfg.OAuthConfig().CallbackURL())

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		a.login.Cancel()
		return fmt.Errorf("read callback: %w", err)
	}
	if strings.TrimSpace(line) == "" {
		a.login.Cancel()
		return errors.New("login canceled")
	}

	session, err := a.login.Complete(ctx, strings.TrimSpace(line))
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	printSession(out, session)
	return nil
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored credentials (achievements are kept)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app) error {
				if err := a.session.Logout(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
				return nil
			})
		},
	}
}

func newRefreshCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Fetch profile and statistics and update achievements",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app) error {
				session, err := a.session.Refresh(ctx)
				if errors.Is(err, model.ErrUnauthenticated) {
					return errors.New("not logged in, run `osmpanel login` first")
				}
				if err != nil {
					return err
				}
				printSession(cmd.OutOrStdout(), session)
				return nil
			})
		},
	}
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show login state, achievement ranks and unlocked links",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app) error {
				return status(ctx, a, cmd.OutOrStdout())
			})
		},
	}
}

func status(ctx context.Context, a *app, out io.Writer) error {
	creds, err := a.creds.Load(ctx)
	switch {
	case errors.Is(err, model.ErrUnauthenticated):
		fmt.Fprintln(out, "Not logged in.")
	case errors.Is(err, driven.ErrEncryptionKeyNotSet):
		fmt.Fprintln(out, "Credential store locked, set OSMPANEL_SECRET_KEY.")
	case err != nil:
		return err
	default:
		fmt.Fprintf(out, "Logged in since %s.\n", creds.UpdatedAt.Local().Format(time.DateTime))
	}

	progress, err := a.achievements.Progress(ctx)
	if err != nil {
		return err
	}
	links, err := a.achievements.Links(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ACHIEVEMENT\tRANK\tNEXT AT")
	for _, p := range progress {
		next := "-"
		if p.Rank < p.Achievement.MaxRank() {
			next = fmt.Sprint(p.Achievement.Thresholds[p.Rank])
		}
		fmt.Fprintf(tw, "%s\t%d/%d\t%s\n", p.Achievement.Title, p.Rank, p.Achievement.MaxRank(), next)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Unlocked links:")
	unlocked := 0
	for _, l := range links {
		if l.Unlocked == nil {
			continue
		}
		unlocked++
		fmt.Fprintf(out, "  %s  %s\n", l.Link.Title, l.Link.URL)
	}
	if unlocked == 0 {
		fmt.Fprintln(out, "  none yet")
	}
	return nil
}

func printSession(out io.Writer, s model.Session) {
	name := s.DisplayName
	if name == "" {
		name = "(unknown user)"
	}
	fmt.Fprintf(out, "Logged in as %s (id %d)\n", name, s.UserID)
	if s.UnreadMessages > 0 {
		fmt.Fprintf(out, "Unread messages: %d\n", s.UnreadMessages)
	}
	if s.ProfileUnavailable {
		fmt.Fprintln(out, "Profile could not be fetched, showing cached data.")
	}
	if s.StatisticsUnavailable {
		fmt.Fprintln(out, "Statistics backend unreachable, achievements use the last known statistics.")
	}
	if s.Statistics != nil {
		fmt.Fprintf(out, "Edits: %d  Days active: %d  Rank: %d\n", s.Statistics.TotalEdits(), s.Statistics.DaysActive, s.Statistics.Rank)
		if s.Statistics.IsAnalyzing {
			fmt.Fprintln(out, "Statistics are still being analyzed.")
		}
	}
	for _, ua := range s.NewUnlocks.Achievements {
		fmt.Fprintf(out, "New achievement: %s rank %d\n", ua.AchievementID, ua.Rank)
	}
	for _, ul := range s.NewUnlocks.Links {
		fmt.Fprintf(out, "New link unlocked: %s\n", ul.LinkID)
	}
}
