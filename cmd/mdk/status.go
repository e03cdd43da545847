package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/franz/media-dock/internal/library"
	"github.com/franz/media-dock/internal/log"
	"github.com/franz/media-dock/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show library and resume-state overview",
	Long: `Summarise the library database: known storages, track counts, the
metadata cache and any persisted playback position. Reads the database
directly; the serve daemon does not need to be running.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))
	log.Configure(log.Config{Level: "error", Console: true})

	dbPath := viper.GetString("db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("no library database at %s (run 'mdk index' or 'mdk serve' first)", dbPath)
	}

	st, err := library.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open library: %w", err)
	}
	defer st.Close()

	total, err := st.CountTracks("")
	if err != nil {
		return err
	}
	storages, err := st.Storages()
	if err != nil {
		return err
	}

	fmt.Printf("Library:  %s (sqlite %s)\n", dbPath, library.SQLiteVersion())
	fmt.Printf("Tracks:   %s\n", humanize.Comma(int64(total)))
	fmt.Printf("Storages: %d\n", len(storages))
	fmt.Println()

	for _, rec := range storages {
		name := rec.Name
		if name == "" {
			name = rec.StorageID
		}
		fmt.Printf("  %s (%s %s)\n", name, rec.Vendor, rec.Serial)
		fmt.Printf("    storage %s, %d tracks\n", rec.StorageID, rec.TrackCount)
		if !rec.LastSeenAt.IsZero() {
			fmt.Printf("    last seen %s", humanize.Time(rec.LastSeenAt))
			if rec.LastIndexedAt.IsZero() {
				fmt.Printf(", never indexed\n")
			} else {
				fmt.Printf(", indexed %s\n", humanize.Time(rec.LastIndexedAt))
			}
		}
	}
	if len(storages) > 0 {
		fmt.Println()
	}

	entries, hits, err := st.CacheStats()
	if err == nil {
		fmt.Printf("Metadata cache: %d entries, %d hits\n", entries, hits)
	}

	if docs := searchDocCount(dbPath); docs >= 0 {
		fmt.Printf("Search index:   %s documents\n", humanize.Comma(docs))
	}

	snap, err := st.LoadPlaybackState()
	if err != nil {
		return err
	}
	if snap == nil || snap.TrackRef == "" {
		fmt.Println("Resume state:   none")
		return nil
	}

	line := fmt.Sprintf("Resume state:   track %s", snap.TrackRef)
	if t, terr := st.TrackByRef(snap.TrackRef); terr == nil && t != nil {
		line = fmt.Sprintf("Resume state:   %s - %s", t.Artist, t.Title)
	}
	fmt.Printf("%s (%d queued)\n", line, len(snap.QueueRefs))
	return nil
}

// searchDocCount opens the index read-only-ish just long enough to count.
// A missing index is not an error for status.
func searchDocCount(dbPath string) int64 {
	path := searchIndexPath(dbPath)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return -1
	}
	search, err := library.OpenSearchIndex(path)
	if err != nil {
		return -1
	}
	defer search.Close()
	docs, err := search.DocCount()
	if err != nil {
		return -1
	}
	return int64(docs)
}
