package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/franz/media-dock/internal/device"
	"github.com/franz/media-dock/internal/index"
	"github.com/franz/media-dock/internal/library"
	"github.com/franz/media-dock/internal/log"
	"github.com/franz/media-dock/internal/report"
	"github.com/franz/media-dock/internal/storage"
	"github.com/franz/media-dock/internal/util"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var indexCmd = &cobra.Command{
	Use:   "index <mount-dir>",
	Short: "Catalogue one storage into the library",
	Long: `Index a mounted storage and catalogue its audio files offline.

This command performs two operations:
1. Survey: walks the mount and counts directories and audio files
2. Catalogue: extracts metadata and writes tracks into the library

The serve daemon runs the same walk and extraction when a storage is
attached; this command builds a library without running the dock.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}

	dbPath := viper.GetString("db")
	artifacts := viper.GetString("artifacts")
	verbose := viper.GetBool("verbose")
	quiet := viper.GetBool("quiet")

	workers := configWorkers()

	// Set log level
	util.SetVerbose(verbose)
	util.SetQuiet(quiet)

	// Component logs stay out of the way of the progress bar unless asked for.
	level := "error"
	if verbose {
		level = "debug"
	}
	log.Configure(log.Config{Level: level, Console: true})

	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return fmt.Errorf("mount directory does not exist: %s", root)
	}

	util.InfoLog("Opening library: %s", dbPath)

	st, err := library.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open library: %w", err)
	}
	defer st.Close()

	search, err := library.OpenSearchIndex(searchIndexPath(dbPath))
	if err != nil {
		return fmt.Errorf("failed to open search index: %w", err)
	}
	defer search.Close()

	// Create event logger with appropriate log level
	logLevel := report.LevelInfo
	if quiet {
		logLevel = report.LevelWarning
	} else if verbose {
		logLevel = report.LevelDebug
	}

	events, err := report.NewEventLogger(artifacts, logLevel)
	if err != nil {
		util.WarnLog("Failed to create event logger: %v", err)
		events = report.NullLogger()
	}
	defer events.Close()

	dev, ok := device.ProbeMassStorage(root)
	if !ok {
		// Not a removable mount; catalogue it as a local directory.
		base := filepath.Base(root)
		dev = device.MediaDevice{
			Vendor: "local",
			Serial: base,
			Class:  device.ClassMassStorage,
			Name:   base,
		}
		util.DebugLog("%s is not a removable mount, indexing as local directory", root)
	}

	reg := storage.NewRegistry()
	reg.RegisterDriver(device.ClassMassStorage, func(d device.MediaDevice, r string) (storage.Driver, error) {
		return storage.NewMassStorage(afero.NewOsFs(), r, util.DefaultRetryConfig()), nil
	})

	loc, err := reg.AddDevice(dev, root)
	if err != nil {
		return fmt.Errorf("failed to attach %s: %w", root, err)
	}
	storageID := loc.ID()

	// Phase 1: Survey
	util.InfoLog("=== Phase 1: Survey ===")
	util.InfoLog("Mount: %s", root)
	util.InfoLog("Storage: %s", storageID)

	// Check if stderr is a terminal (disable progress bar if piped/redirected)
	isTTY := util.IsInteractive(os.Stderr)
	var bar *progressbar.ProgressBar
	if isTTY && !util.IsQuiet() {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("Surveying"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("files"),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetRenderBlankState(true),
		)
	}

	pipeline := index.NewPipeline(reg)
	run, err := pipeline.IndexStorages(ctx, []string{storageID}, index.Options{
		Progress: func(p index.Progress) {
			if bar == nil {
				return
			}
			bar.Describe(fmt.Sprintf("Surveying | %d dirs | %d audio", p.Dirs, p.Audio))
			_ = bar.Set(p.Files)
		},
	})
	if err != nil {
		return fmt.Errorf("survey failed to start: %w", err)
	}

	for range run.Files() {
		// The survey only counts; the catalogue pass below re-reads files.
	}
	surveyErr := run.Wait()
	if bar != nil {
		_ = bar.Finish()
	}

	stats := run.Stats()
	events.LogIndexPass(storageID, stats.Files, stats.Audio, stats.Elapsed, surveyErr)
	if surveyErr != nil {
		return fmt.Errorf("survey failed: %w", surveyErr)
	}

	util.SuccessLog("Survey complete in %v", stats.Elapsed.Round(time.Millisecond))
	util.InfoLog("  Directories: %d", stats.Dirs)
	util.InfoLog("  Files: %d", stats.Files)
	util.InfoLog("  Audio files: %d", stats.Audio)
	if stats.Skipped > 0 {
		util.WarnLog("  Skipped: %d", stats.Skipped)
	}

	// Phase 2: Catalogue
	util.InfoLog("")
	util.InfoLog("=== Phase 2: Catalogue ===")
	util.InfoLog("Workers: %d", workers)

	builder := library.NewBuilder(library.BuilderConfig{
		Store:    st,
		Registry: reg,
		Pipeline: pipeline,
		Search:   search,
		Workers:  workers,
	})

	result, err := builder.Build(ctx, storageID)
	if err != nil {
		if result != nil && result.Cancelled {
			util.WarnLog("Catalogue cancelled, %d tracks kept", result.Catalogued)
		}
		return fmt.Errorf("catalogue failed: %w", err)
	}

	util.SuccessLog("Catalogue complete in %v", result.Elapsed.Round(time.Millisecond))
	util.InfoLog("  Discovered: %s", humanize.Comma(int64(result.Discovered)))
	util.InfoLog("  Catalogued: %s", humanize.Comma(int64(result.Catalogued)))
	util.InfoLog("  Metadata cache hits: %d", result.CacheHits)
	if result.TagMisses > 0 {
		util.InfoLog("  Filename fallbacks: %d", result.TagMisses)
	}
	if result.Failed > 0 {
		util.WarnLog("  Failed: %d", result.Failed)
	}

	// Summary
	total, err := st.CountTracks("")
	if err == nil {
		util.InfoLog("")
		util.SuccessLog("=== Library Summary ===")
		util.InfoLog("Tracks in library: %s", humanize.Comma(int64(total)))
		if docs, derr := search.DocCount(); derr == nil {
			util.InfoLog("Search documents: %s", humanize.Comma(int64(docs)))
		}
		util.InfoLog("Database: %s", dbPath)
	}

	return nil
}
