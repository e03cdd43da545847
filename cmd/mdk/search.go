package main

import (
	"fmt"
	"strings"

	"github.com/franz/media-dock/internal/library"
	"github.com/franz/media-dock/internal/log"
	"github.com/franz/media-dock/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the track catalogue",
	Long: `Query the full-text index over the catalogued tracks. Matches titles,
artists, albums, genres and file names.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntP("limit", "n", 20, "maximum number of results")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	limit, _ := cmd.Flags().GetInt("limit")

	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))
	log.Configure(log.Config{Level: "error", Console: true})

	dbPath := viper.GetString("db")

	search, err := library.OpenSearchIndex(searchIndexPath(dbPath))
	if err != nil {
		return fmt.Errorf("failed to open search index: %w", err)
	}
	defer search.Close()

	hits, err := search.Search(query, limit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(hits) == 0 {
		util.InfoLog("No matches for %q", query)
		return nil
	}

	for i, h := range hits {
		title := h.Title
		if title == "" {
			title = h.Path
		}
		fmt.Printf("%2d. %s", i+1, title)
		if h.Artist != "" {
			fmt.Printf(" - %s", h.Artist)
		}
		if h.Album != "" {
			fmt.Printf(" (%s)", h.Album)
		}
		fmt.Println()
		fmt.Printf("    ref %s  storage %s  score %.2f\n", h.Ref, h.StorageID, h.Score)
	}
	fmt.Printf("\n%d match(es) for %q\n", len(hits), query)
	return nil
}
