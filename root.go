package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"vrewexport/internal/config"
	"vrewexport/internal/jobs"
	"vrewexport/internal/model"
	"vrewexport/internal/service"
	"vrewexport/internal/tools"
)

const shutdownTimeout = 15 * time.Second

// commandContext carries the loaded configuration between cobra hooks.
type commandContext struct {
	configPath string
	cfg        *config.Config
	logCloser  io.Closer
}

func (c *commandContext) load() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	if c.configPath != "" {
		if err := os.Setenv("CONFIG_PATH", c.configPath); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	closer, err := config.InitLogging(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	c.cfg, c.logCloser = cfg, closer
	return cfg, nil
}

func (c *commandContext) close() {
	if c.logCloser != nil {
		_ = c.logCloser.Close()
	}
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "vrewexport",
		Short:         "Export storyboards as Vrew projects",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", "", "YAML configuration file (overrides CONFIG_PATH)")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))
	rootCmd.AddCommand(newPlanCommand())
	return rootCmd
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when brokers are configured, the export job consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.load()
			if err != nil {
				return err
			}
			defer ctx.close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(runCtx, cfg, logrus.StandardLogger())
			if err != nil {
				return err
			}
			defer a.Close()
			return serve(runCtx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	if a.cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(routerDeps{
		Exporter:      a.exporter,
		Tool:          tools.NewExportTool(a.exporter, a.cfg.ToolOutputDir),
		AllowOrigins:  a.cfg.CORSAllowOrigins,
		ExportTimeout: a.cfg.ExportTimeout,
		MaxBodyBytes:  a.cfg.Fetch.MaxBytes,
		Log:           a.log,
	})

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if a.cfg.Kafka.Enabled() {
		if a.objects == nil {
			return errors.New("export jobs need S3 for results, but S3 is unavailable")
		}
		consumer, err := jobs.NewConsumer(jobs.ConsumerConfig{
			Brokers: a.cfg.Kafka.Brokers,
			Topic:   a.cfg.Kafka.Topic,
			GroupID: a.cfg.Kafka.GroupID,
			Handler: jobs.NewExportHandler(a.exporter, a.objects, a.log),
			Logger:  a.log,
		})
		if err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
		defer consumer.Close()
		go func() {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.log.WithError(err).Error("export job consumer stopped")
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("addr", srv.Addr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	a.log.Info("server stopped")
	return nil
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var (
		storyboard string
		aspect     string
		batch      int
		out        string
		title      string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a storyboard file (.json or .toml) to a .vrew project or split bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.load()
			if err != nil {
				return err
			}
			defer ctx.close()

			sb, err := model.LoadStoryboard(storyboard)
			if err != nil {
				return err
			}
			req := service.Request{
				Title:       sb.Title,
				Scenes:      sb.Scenes,
				AspectRatio: sb.AspectRatio,
				BatchSize:   batch,
			}
			if title != "" {
				req.Title = title
			}
			if aspect != "" {
				req.AspectRatio = model.ParseAspectRatio(aspect)
			}

			a, err := newApp(cmd.Context(), cfg, logrus.StandardLogger())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.exporter.Export(cmd.Context(), req)
			if err != nil {
				return err
			}

			path := exportPath(out, res.FileName)
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}
			if err := os.WriteFile(path, res.Data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s, %d scenes, %d windows, %d failed)\n",
				path, humanize.Bytes(uint64(len(res.Data))), res.Scenes, res.Windows, res.FailedWindows)
			return nil
		},
	}
	cmd.Flags().StringVarP(&storyboard, "storyboard", "s", "", "Storyboard file")
	cmd.Flags().StringVar(&aspect, "aspect", "", "Aspect ratio, 16:9 or 9:16 (overrides the storyboard)")
	cmd.Flags().IntVar(&batch, "batch", 0, "Scenes per project; 0 keeps everything in one project")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file or existing directory")
	cmd.Flags().StringVar(&title, "title", "", "Download title (overrides the storyboard)")
	_ = cmd.MarkFlagRequired("storyboard")
	return cmd
}

// exportPath places produced inside out when out is empty or a directory.
func exportPath(out, produced string) string {
	if out == "" {
		return produced
	}
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		return filepath.Join(out, produced)
	}
	return out
}

func newPlanCommand() *cobra.Command {
	var (
		scenes     int
		storyboard string
		batch      int
	)
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show how scenes would be split into projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			total := scenes
			if storyboard != "" {
				sb, err := model.LoadStoryboard(storyboard)
				if err != nil {
					return err
				}
				total = len(sb.Scenes)
			}
			if total <= 0 {
				return errors.New("plan needs --scenes or a storyboard with scenes")
			}

			windows := service.PlanWindows(total, batch)
			download := service.DownloadName(service.DefaultTitle(time.Now()), len(windows))
			fmt.Fprintln(cmd.OutOrStdout(), renderPlan(windows, download))
			return nil
		},
	}
	cmd.Flags().IntVarP(&scenes, "scenes", "n", 0, "Number of scenes")
	cmd.Flags().StringVarP(&storyboard, "storyboard", "s", "", "Count scenes from this storyboard file")
	cmd.Flags().IntVar(&batch, "batch", 0, "Scenes per project; 0 keeps everything in one project")
	return cmd
}
