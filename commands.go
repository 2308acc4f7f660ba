package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lagren/fleetwatch/dashboard"
	"github.com/lagren/fleetwatch/persistence"
	"github.com/lagren/fleetwatch/reconciler"
	"github.com/lagren/fleetwatch/registration"
	"github.com/lagren/fleetwatch/slack"
	"github.com/lagren/fleetwatch/status"
)

type rootOptions struct {
	envFile    string
	serviceURL string
	logFile    string
	cfg        Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "fleetwatch",
		Short: "Watch which hosts of a fleet are alive",
		Long:  "fleetwatch mirrors a fleet status service into alive and dead host lists and lets you register and deregister hosts.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var envFiles []string
			if opts.envFile != "" {
				envFiles = append(envFiles, opts.envFile)
			}

			cfg, err := loadConfig(cmd.Context(), envFiles...)
			if err != nil {
				return fmt.Errorf("could not load config: %w", err)
			}

			if opts.serviceURL != "" {
				cfg.ServiceURL = opts.serviceURL
			}

			level, err := logrus.ParseLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
			logrus.SetLevel(level)

			opts.cfg = cfg

			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Load environment from this file (default: .env)")
	root.PersistentFlags().StringVar(&opts.serviceURL, "service", "", "Status service base URL (overrides FLEETWATCH_SERVICE_URL)")

	root.AddCommand(newServeCommand(opts))
	root.AddCommand(newWatchCommand(opts))
	root.AddCommand(newStatusCommand(opts))
	root.AddCommand(newAddCommand(opts))
	root.AddCommand(newRemoveCommand(opts))

	return root
}

func (o *rootOptions) client() *status.Client {
	return status.NewClient(o.cfg.ServiceURL, o.cfg.RequestTimeout)
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the fleet status service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if listen != "" {
				cfg.ListenAddr = listen
			}

			db, err := openDB(cfg.DBPath)
			if err != nil {
				return err
			}

			svc := newFleetService(db, cfg.ProbeOptions())

			return serve(cmd.Context(), svc, cfg)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (overrides FLEETWATCH_LISTEN_ADDR)")

	return cmd
}

func openDB(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	if err := db.AutoMigrate(&persistence.Host{}); err != nil {
		return nil, fmt.Errorf("could not migrate database: %w", err)
	}

	return db, nil
}

func serve(ctx context.Context, svc *fleetService, cfg Config) error {
	go svc.Loop(ctx, cfg.ProbeInterval)

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           newHandler(svc, os.Stdout),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		logrus.Infof("Status service listening on %s", cfg.ListenAddr)
		errs <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	logrus.Infof("Status service stopped")

	return nil
}

func newWatchCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Open the live fleet dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg

			// The dashboard owns the terminal, so logs go to a file or nowhere.
			var logOutput io.Writer = io.Discard
			if opts.logFile != "" {
				f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
				if err != nil {
					return err
				}
				defer f.Close()
				logOutput = f
			}
			logrus.SetOutput(logOutput)
			defer logrus.SetOutput(os.Stderr)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			client := opts.client()
			rec := reconciler.New(client, cfg.PollInterval)
			defer rec.Stop()

			reg := registration.New(client)

			events, unsubscribe := rec.Subscribe()
			defer unsubscribe()

			if cfg.SlackEnabled() {
				notifications, unsubscribeSlack := rec.Subscribe()
				defer unsubscribeSlack()

				go slack.NewNotifier(cfg.SlackMessageKey, cfg.SlackChannelID).Run(ctx, notifications)
			}

			go rec.Start(ctx)

			model := dashboard.NewModel(rec, reg, events, cfg.RequestTimeout)
			program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

			if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return err
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&opts.logFile, "log-file", "", "Write logs to this file while the dashboard runs")

	return cmd
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	var hideDead bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print alive and dead hosts once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rec := reconciler.New(opts.client(), opts.cfg.PollInterval)
			defer rec.Stop()

			if err := rec.PollOnce(cmd.Context()); err != nil {
				return err
			}

			printSnapshot(cmd.OutOrStdout(), rec.Snapshot(), !hideDead)

			return nil
		},
	}

	cmd.Flags().BoolVar(&hideDead, "hide-dead", false, "Only list alive hosts")

	return cmd
}

func printSnapshot(w io.Writer, snap reconciler.Snapshot, showDead bool) {
	fmt.Fprintf(w, "Alive (%d)\n", len(snap.Alive))
	for _, host := range snap.AliveHosts() {
		fmt.Fprintf(w, "  %s\n", host)
	}

	if !showDead {
		return
	}

	fmt.Fprintf(w, "Dead (%d)\n", len(snap.Dead))
	for _, host := range snap.DeadHosts() {
		line := "  " + host
		if msg, ok := snap.Dead[host].Fields["ErrorMessage"].(string); ok && msg != "" {
			line += ": " + msg
		}
		fmt.Fprintln(w, line)
	}

	fmt.Fprintf(w, "Polled %s\n", humanize.Time(snap.LastPoll))
}

func newAddCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <host>",
		Short: "Register a host with the status service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := registration.New(opts.client())
			reg.SetPending(args[0])

			if err := reg.AddHost(cmd.Context(), reg.Pending()); err != nil {
				return errors.New(reg.LastError())
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", args[0])

			return nil
		},
	}
}

func newRemoveCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <host>",
		Short: "Deregister a host from the status service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec := reconciler.New(opts.client(), opts.cfg.PollInterval)
			defer rec.Stop()

			if err := <-rec.RemoveHost(args[0]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])

			return nil
		},
	}
}
