package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/eringen/spacetraveling"
	"github.com/eringen/spacetraveling/views"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "spacetraveling",
	Short:         "Blog front-end for a headless CMS",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env is normal in production.
		_ = godotenv.Load()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the site, revalidating CMS content (SIGHUP clears the cache)",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			app.Config.Addr = addr
		}

		if err := app.Init(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// SIGHUP drops cached CMS content so the next request refetches it.
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)

		errc := make(chan error, 1)
		go func() { errc <- app.Start() }()

	wait:
		for {
			select {
			case err := <-errc:
				return err
			case <-hup:
				app.Cache.Invalidate()
				app.Logger.Info("cache invalidated")
			case <-ctx.Done():
				break wait
			}
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.Echo.Shutdown(shutdownCtx)
	},
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Render the whole site to static files",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		out, _ := cmd.Flags().GetString("out")
		localize, _ := cmd.Flags().GetBool("localize-banners")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		_, err = app.Build(ctx, spacetraveling.BuildOptions{
			OutDir:          out,
			LocalizeBanners: localize,
		})
		return err
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

// newApp loads configuration (file, then environment) and wires the CMS
// source and default views.
func newApp(cmd *cobra.Command) (*spacetraveling.App, error) {
	var cfg spacetraveling.SiteConfig
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		if err := spacetraveling.LoadConfigFile(path, &cfg); err != nil {
			return nil, err
		}
	}
	if err := spacetraveling.ApplyEnv(&cfg); err != nil {
		return nil, err
	}
	if cfg.CMSEndpoint == "" {
		return nil, fmt.Errorf("CMS_ENDPOINT is required")
	}

	source, err := spacetraveling.NewCMSSource(cfg)
	if err != nil {
		return nil, err
	}
	format, _ := cmd.Flags().GetString("log-format")
	return spacetraveling.New(cfg, views.Default(),
		spacetraveling.WithSource(source),
		spacetraveling.WithLogger(spacetraveling.NewLogger(os.Stderr, format)),
	), nil
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text or json")

	serveCmd.Flags().String("addr", "", "listen address (overrides ADDR)")

	buildCmd.Flags().String("out", "dist", "output directory")
	buildCmd.Flags().Bool("localize-banners", false, "download and resize post banners into the output")

	rootCmd.AddCommand(serveCmd, buildCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "spacetraveling:", err)
		os.Exit(1)
	}
}
