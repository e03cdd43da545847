package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/franz/media-dock/internal/library"
	"github.com/franz/media-dock/internal/log"
	"github.com/franz/media-dock/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <track-ref>",
	Short: "Show one catalogued track",
	Long: `Print the full catalogue row of one track, addressed by its ref.
Refs appear in search results and in the event log.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	ref := args[0]

	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))
	log.Configure(log.Config{Level: "error", Console: true})

	dbPath := viper.GetString("db")

	st, err := library.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open library: %w", err)
	}
	defer st.Close()

	t, err := st.TrackByRef(ref)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("no track with ref %s (try 'mdk search')", ref)
	}

	fmt.Printf("Ref:       %s\n", t.Ref)
	fmt.Printf("Title:     %s\n", t.Title)
	fmt.Printf("Artist:    %s\n", t.Artist)
	if t.AlbumArtist != "" && t.AlbumArtist != t.Artist {
		fmt.Printf("Album artist: %s\n", t.AlbumArtist)
	}
	fmt.Printf("Album:     %s\n", t.Album)
	if t.Genre != "" {
		fmt.Printf("Genre:     %s\n", t.Genre)
	}
	if t.Year > 0 {
		fmt.Printf("Year:      %d\n", t.Year)
	}
	if t.TrackNo > 0 {
		if t.TrackTotal > 0 {
			fmt.Printf("Track:     %d/%d\n", t.TrackNo, t.TrackTotal)
		} else {
			fmt.Printf("Track:     %d\n", t.TrackNo)
		}
	}
	if t.DiscNo > 0 {
		fmt.Printf("Disc:      %d\n", t.DiscNo)
	}
	fmt.Printf("Format:    %s\n", t.Format)
	source := "tags"
	if !t.FromTags {
		source = "filename"
	}
	fmt.Printf("Metadata:  from %s\n", source)
	fmt.Println()
	fmt.Printf("Storage:   %s\n", t.StorageID)
	fmt.Printf("Path:      %s\n", t.Path)
	fmt.Printf("Size:      %s\n", humanize.Bytes(uint64(t.SizeBytes)))
	fmt.Printf("Modified:  %s\n", time.Unix(t.MtimeUnix, 0).Format("2006-01-02 15:04:05"))
	fmt.Printf("First seen: %s\n", humanize.Time(t.FirstSeenAt))
	fmt.Printf("Updated:    %s\n", humanize.Time(t.LastUpdate))
	return nil
}
