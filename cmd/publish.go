package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"hlsladder/cache"
	"hlsladder/core/encoder"
	"hlsladder/core/job"
	"hlsladder/core/pipeline"
	"hlsladder/db"
	"hlsladder/logger"
	"hlsladder/repository"
	"hlsladder/storage"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	publishAll         bool
	publishTracks      []string
	publishTracksFile  string
	publishLimit       int
	publishConcurrency int
	publishForce       bool
	publishDryRun      bool
	publishFailedOut   string
	publishMetricsAddr string
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Encode tracks into the four-tier HLS ladder and upload them",
	Long: `Publish downloads each source mp3, encodes the low/medium/high/premium
renditions with ffmpeg, uploads segments and sub-playlists and finally the
master manifest. Tracks whose master manifest already exists are skipped
unless --force is given. Failed track ids are written to --failed-out.`,
	Args: cobra.NoArgs,
	RunE: runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)

	f := publishCmd.Flags()
	f.BoolVar(&publishAll, "all", false, "publish every mp3 under the audio prefix")
	f.StringArrayVar(&publishTracks, "track", nil, "track id to publish (repeatable)")
	f.StringVar(&publishTracksFile, "tracks-file", "", "file with one track id per line")
	f.IntVar(&publishLimit, "limit", 0, "process at most n tracks (0 = no limit)")
	f.IntVarP(&publishConcurrency, "concurrency", "c", pipeline.DefaultConcurrency, "number of tracks processed in parallel")
	f.BoolVar(&publishForce, "force", false, "re-publish tracks that already have a master manifest")
	f.BoolVar(&publishDryRun, "dry-run", false, "print the resolved track ids and exit")
	f.StringVar(&publishFailedOut, "failed-out", "failed-tracks.txt", "where to write the ids of failed tracks")
	f.StringVar(&publishMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")

	publishCmd.Example = `  # Publish two tracks
  hlsladder publish --track 1024 --track 1025

  # Publish everything, four at a time
  hlsladder publish --all -c 4

  # Retry the failures of the previous run
  hlsladder publish --tracks-file failed-tracks.txt`
}

func runPublish(cmd *cobra.Command, args []string) error {
	ws := workSet{
		All:        publishAll,
		Tracks:     publishTracks,
		TracksFile: publishTracksFile,
		Limit:      publishLimit,
	}
	if err := ws.validate(); err != nil {
		return err
	}
	if publishConcurrency < 1 {
		return fmt.Errorf("--concurrency must be at least 1")
	}

	ctx, stop := interruptContext(context.Background())
	defer stop()
	out := cmd.OutOrStdout()

	layout := storage.Layout{
		AudioPrefix:    cfg.AudioPrefix,
		HLSPrefix:      cfg.HLSPrefix,
		SourcePatterns: cfg.SourceKeyPatterns,
	}

	// Explicit ids resolve without storage; only --all lists the bucket.
	var gateway *storage.Gateway
	var objects lister
	if publishAll {
		gw, err := newGateway()
		if err != nil {
			return err
		}
		gateway, objects = gw, gw
	}
	ids, err := ws.resolve(ctx, objects, layout)
	if err != nil {
		return err
	}

	if publishDryRun {
		for _, id := range ids {
			fmt.Fprintln(out, id)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%d track(s) would be processed\n", len(ids))
		return nil
	}
	if len(ids) == 0 {
		fmt.Fprintln(out, "Nothing to publish.")
		return nil
	}

	if err := cfg.ValidatePublish(); err != nil {
		return err
	}
	if gateway == nil {
		if gateway, err = newGateway(); err != nil {
			return err
		}
	}
	enc := encoder.NewFFmpegEncoder(cfg.FFmpegPath, cfg.FFprobePath)
	if err := enc.Check(); err != nil {
		return err
	}

	runID := uuid.NewString()
	scratchRoot := filepath.Join(cfg.ScratchDir, runID)
	defer func() {
		if err := os.RemoveAll(scratchRoot); err != nil {
			logger.Warn("failed to remove run scratch directory", logger.String("path", scratchRoot), logger.ErrorField(err))
		}
	}()

	var catalog job.Catalog
	if cfg.CatalogEnabled() {
		gormDB, err := db.ConnectGormDB(cfg)
		if err != nil {
			return fmt.Errorf("connect catalog: %w", err)
		}
		defer db.CloseGormDB(gormDB)
		catalog = repository.NewGormCatalogRepository(gormDB)
	} else {
		logger.Info("no catalog database configured, manifest URLs are not recorded")
	}

	var status pipeline.StatusSink
	if cfg.RedisEnabled() {
		if err := cache.ConnectRedis(cfg); err != nil {
			logger.Warn("run status will not be published", logger.ErrorField(err))
		} else {
			defer cache.CloseRedis()
			status = cache.NewStatusPublisher(cache.RedisClient)
		}
	}

	metrics, err := pipeline.NewMetrics()
	if err != nil {
		return err
	}
	if publishMetricsAddr != "" {
		// Kept up until the summary is printed, past the drain.
		metricsCtx, stopMetrics := context.WithCancel(context.Background())
		defer stopMetrics()
		go func() {
			if err := metrics.Serve(metricsCtx, publishMetricsAddr); err != nil {
				logger.Error("metrics server failed", logger.ErrorField(err))
			}
		}()
	}

	runner := job.NewRunner(gateway, enc, catalog, job.Options{
		Layout:        layout,
		PublicBaseURL: cfg.PublicBaseURL,
		ScratchRoot:   scratchRoot,
		RetryDelay:    cfg.JobRetryDelay,
		Force:         publishForce,
	})
	runner.OnState(logStateChange)
	scheduler := pipeline.NewScheduler(runner, pipeline.Options{
		RunID:       runID,
		Concurrency: publishConcurrency,
		Metrics:     metrics,
		Status:      status,
		Reporter:    pipeline.NewReporter(cmd.ErrOrStderr()),
	})

	fmt.Fprintf(out, "Run %s: %d track(s), concurrency %d\n", runID, len(ids), publishConcurrency)
	summary := scheduler.Run(ctx, ids)

	return finishRun(out, summary, publishFailedOut)
}

// interruptContext is cancelled by the first SIGINT or SIGTERM. The handler is
// released right after, so a second signal terminates the process.
func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ctx, stop
}

func newGateway() (*storage.Gateway, error) {
	if err := cfg.ValidateStorage(); err != nil {
		return nil, err
	}
	store, err := storage.NewMinioStore(cfg)
	if err != nil {
		return nil, err
	}
	return storage.NewGateway(store, cfg.StorageRetryBase), nil
}

func logStateChange(trackID string, attempt int, s job.State) {
	logger.Debug("track state changed",
		logger.String("trackId", trackID),
		logger.Int("attempt", attempt),
		logger.String("state", s.String()))
}

// finishRun prints the summary, writes the failure ledger and turns a dirty
// run into an error so the process exits 1.
func finishRun(out io.Writer, summary pipeline.Summary, ledgerPath string) error {
	if err := pipeline.RenderSummary(out, summary); err != nil {
		return err
	}
	if err := summary.Ledger.WriteFile(ledgerPath); err != nil {
		logger.Error("failed to write failure ledger", logger.String("path", ledgerPath), logger.ErrorField(err))
	} else if summary.Ledger.Len() > 0 {
		fmt.Fprintf(out, "Failed track ids written to %s\n", ledgerPath)
	}

	if summary.ExitCode() != 0 {
		if summary.Interrupted {
			return errors.New("run interrupted before every track was processed")
		}
		return fmt.Errorf("%d track(s) failed", summary.Failed)
	}
	return nil
}
