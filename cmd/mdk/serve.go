package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/franz/media-dock/internal/control"
	"github.com/franz/media-dock/internal/device"
	"github.com/franz/media-dock/internal/index"
	"github.com/franz/media-dock/internal/library"
	"github.com/franz/media-dock/internal/log"
	"github.com/franz/media-dock/internal/report"
	"github.com/franz/media-dock/internal/service"
	"github.com/franz/media-dock/internal/storage"
	"github.com/franz/media-dock/internal/util"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dock daemon",
	Long: `Run the dock as a long-lived daemon.

The daemon watches the mount directory for removable media, catalogues
attached storages into the library, and exposes a small HTTP API for
status, search, browsing and stop/eject control. On shutdown it drains
all jobs and writes a library report into the artifacts directory.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("workers", 4, "metadata extraction workers")
	serveCmd.Flags().Duration("settle", 500*time.Millisecond, "wait after a mount appears before probing it")
	viper.BindPFlag("workers", serveCmd.Flags().Lookup("workers"))
	viper.BindPFlag("settle", serveCmd.Flags().Lookup("settle"))
	rootCmd.AddCommand(serveCmd)
}

// eventNotifier forwards job failures into the JSONL event log.
type eventNotifier struct {
	events *report.EventLogger
}

func (n eventNotifier) JobFailed(job string, err error) {
	n.events.LogJob(job, "failed", err)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPath := viper.GetString("db")
	mounts := viper.GetString("mounts")
	listen := viper.GetString("listen")
	artifacts := viper.GetString("artifacts")
	verbose := viper.GetBool("verbose")
	quiet := viper.GetBool("quiet")

	// Set log level
	util.SetVerbose(verbose)
	util.SetQuiet(quiet)

	level := "info"
	if quiet {
		level = "error"
	} else if verbose {
		level = "debug"
	}
	log.Configure(log.Config{Level: level, Console: util.IsInteractive(os.Stderr)})
	logger := log.WithComponent("serve")

	// Verify mount directory exists
	if _, err := os.Stat(mounts); os.IsNotExist(err) {
		return fmt.Errorf("mount directory does not exist: %s", mounts)
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

	if events.Path() != "" {
		util.InfoLog("Event log: %s", events.Path())
	}

	reg := storage.NewRegistry()
	osFS := afero.NewOsFs()
	fileDriver := func(dev device.MediaDevice, root string) (storage.Driver, error) {
		return storage.NewMassStorage(osFS, root, util.DefaultRetryConfig()), nil
	}
	reg.RegisterDriver(device.ClassMassStorage, fileDriver)
	// MTP devices arrive as FUSE mounts, so the file driver covers them too.
	reg.RegisterDriver(device.ClassMediaTransfer, fileDriver)

	reg.Subscribe(func(n storage.Notification) {
		switch n.Type {
		case storage.StorageAdded:
			if n.Location != nil {
				events.LogAttach(n.StorageID, n.Location.Device().String(), n.Location.RootURI())
			}
		case storage.StorageRemoved:
			deviceID := ""
			if n.Location != nil {
				deviceID = n.Location.Device().String()
			}
			events.LogDetach(n.StorageID, deviceID)
		}
	})

	listings, err := storage.NewListingCache(128)
	if err != nil {
		return fmt.Errorf("failed to create listing cache: %w", err)
	}
	listings.AttachTo(reg)

	pipeline := index.NewPipeline(reg)
	builder := library.NewBuilder(library.BuilderConfig{
		Store:    st,
		Registry: reg,
		Pipeline: pipeline,
		Search:   search,
		Workers:  configWorkers(),
	})

	host := service.NewInProcessHost()
	orch := service.New(service.Config{
		Registry: reg,
		Pipeline: pipeline,
		Builder:  builder,
		Store:    st,
		Search:   search,
		Listings: listings,
		Host:     host,
		Notifier: eventNotifier{events},
		OnIndexed: func(stats index.Stats) {
			events.LogIndexPass("", stats.Files, stats.Audio, stats.Elapsed, nil)
			control.IncIndexPass("ok", stats.Audio)
		},
	})
	host.Bind(orch.ConfirmForeground, func() {
		logger.Info().Msg("host terminate, service dropped to background")
	})

	server := control.NewServer(control.Config{
		Addr:         listen,
		Orchestrator: orch,
		Registry:     reg,
		Store:        st,
		Events:       events,
	})

	watcher, err := device.NewWatcher(device.WatcherConfig{
		Root:   mounts,
		Settle: viper.GetDuration("settle"),
	})
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", mounts, err)
	}

	util.InfoLog("Watching mounts under %s", mounts)
	util.InfoLog("Control API on http://%s", listen)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return watcher.Run(gctx)
	})
	g.Go(func() error {
		return server.Start(gctx)
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case ev := <-watcher.Events():
				orch.Apply(ev)
				if ev.Type == device.EventAttach {
					go buildOnAttach(gctx, orch, ev.Device.ID())
				}
			}
		}
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		util.ErrorLog("Daemon failed: %v", err)
	}

	util.InfoLog("Shutting down, draining jobs")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if serr := orch.Shutdown(shutdownCtx); serr != nil {
		util.WarnLog("Jobs did not drain cleanly: %v", serr)
	}

	writeShutdownReport(st, search, events, dbPath, artifacts)

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	util.SuccessLog("Dock stopped")
	return nil
}

// buildOnAttach catalogues a freshly attached storage. Failures are logged
// by the orchestrator's notifier; this only reports the outcome.
func buildOnAttach(ctx context.Context, orch *service.Orchestrator, storageID string) {
	job, err := orch.StartLibraryCreation(ctx, storageID)
	if err != nil {
		util.WarnLog("Library creation for %s not started: %v", storageID, err)
		return
	}
	err = job.Join(ctx)
	control.IncJob(service.JobLibraryCreation, err)
	if err != nil {
		util.WarnLog("Library creation for %s: %v", storageID, err)
		return
	}
	util.SuccessLog("Storage %s catalogued", storageID)
}

func writeShutdownReport(st *library.Store, search *library.SearchIndex, events *report.EventLogger, dbPath, artifacts string) {
	summary, err := report.GenerateSummary(st, search, events.Path())
	if err != nil {
		util.WarnLog("Failed to generate report: %v", err)
		return
	}
	summary.DatabasePath = dbPath

	out := filepath.Join(artifacts, "summary.md")
	if err := report.WriteMarkdown(summary, out); err != nil {
		util.WarnLog("Failed to write report: %v", err)
		return
	}
	util.InfoLog("Report: %s", out)
}
