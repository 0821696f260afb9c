package main

import (
	"encoding/json"
	"fmt"
	"os"

	"storefront/menu/internal/config"
	"storefront/menu/internal/container"
	"storefront/menu/internal/domain"
	"storefront/menu/internal/menu"
	"storefront/menu/internal/render"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var (
		verbose bool
		cfg     *config.Config
	)

	root := &cobra.Command{
		Use:          "menu",
		Short:        "Storefront navigation menu service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if err := configureLogging(loaded.Log, verbose); err != nil {
				return err
			}
			cfg = loaded
			log.Debug("Configuration loaded successfully")
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newServeCmd(&cfg))
	root.AddCommand(newShowCmd(&cfg))
	root.AddCommand(newRefreshCmd(&cfg))

	return root
}

func newServeCmd(cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the menu API and run refresh workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info("Starting storefront menu service...")

			app, err := container.New(cmd.Context(), *cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize container: %w", err)
			}
			defer app.Close()

			if err := app.Run(cmd.Context()); err != nil {
				return fmt.Errorf("service exited with error: %w", err)
			}

			log.Info("Service finished successfully")
			return nil
		},
	}
}

func newShowCmd(cfg **config.Config) *cobra.Command {
	var (
		layout menu.Layout
		asHTML bool
	)

	cmd := &cobra.Command{
		Use:   "show [parent]",
		Short: "Fetch the subcategories once and print the derived menu",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := container.NewStandalone(*cfg)
			ctx := cmd.Context()

			var parents []domain.ParentColumns
			if len(args) == 1 {
				parents = []domain.ParentColumns{{
					Parent:  args[0],
					Columns: app.Service.Menu(ctx, args[0], layout),
				}}
			} else {
				parents = app.Service.Columns(ctx, layout)
			}

			if asHTML {
				html, err := render.MegaMenu(parents)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(html)
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(parents)
		},
	}

	cmd.Flags().IntVar(&layout.ChunkSize, "chunk", 0, "subcategories per column (default from config)")
	cmd.Flags().IntVar(&layout.MaxCols, "cols", 0, "maximum columns per parent (default from config)")
	cmd.Flags().BoolVar(&asHTML, "html", false, "print the rendered HTML fragment instead of JSON")

	return cmd
}

func newRefreshCmd(cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Ask running workers to rebuild the cached menu",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := container.New(cmd.Context(), *cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize container: %w", err)
			}
			defer app.Close()

			id, err := app.Service.RequestRefresh(cmd.Context(), "cli")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "refresh queued: %s\n", id)
			return nil
		},
	}
}

func configureLogging(cfg config.LogConfig, verbose bool) error {
	log.SetOutput(os.Stderr)

	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	if verbose {
		level = log.DebugLevel
	}
	log.SetLevel(level)
	return nil
}
