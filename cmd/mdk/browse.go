package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/franz/media-dock/internal/device"
	"github.com/franz/media-dock/internal/log"
	"github.com/franz/media-dock/internal/storage"
	"github.com/franz/media-dock/internal/util"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var browseCmd = &cobra.Command{
	Use:   "browse <mount-dir> [path]",
	Short: "List one directory of a storage",
	Long: `List the entries of one directory on a mounted storage through the
same driver the dock uses, including its retry behavior on flaky reads.
Paths are relative to the mount root.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runBrowse,
}

func init() {
	rootCmd.AddCommand(browseCmd)
}

func runBrowse(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	dir := ""
	if len(args) == 2 {
		dir = args[1]
	}

	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))
	log.Configure(log.Config{Level: "error", Console: true})

	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return fmt.Errorf("mount directory does not exist: %s", root)
	}

	dev, ok := device.ProbeMassStorage(root)
	if !ok {
		base := filepath.Base(root)
		dev = device.MediaDevice{
			Vendor: "local",
			Serial: base,
			Class:  device.ClassMassStorage,
			Name:   base,
		}
	}

	reg := storage.NewRegistry()
	reg.RegisterDriver(device.ClassMassStorage, func(d device.MediaDevice, r string) (storage.Driver, error) {
		return storage.NewMassStorage(afero.NewOsFs(), r, util.DefaultRetryConfig()), nil
	})

	loc, err := reg.AddDevice(dev, root)
	if err != nil {
		return fmt.Errorf("failed to attach %s: %w", root, err)
	}

	entries, err := loc.List(dir)
	if err != nil {
		return fmt.Errorf("failed to list %q: %w", dir, err)
	}

	if len(entries) == 0 {
		util.InfoLog("No playable entries in %q", dir)
		return nil
	}

	for _, e := range entries {
		if e.Dir {
			fmt.Printf("%-60s  <dir>\n", e.Name+"/")
			continue
		}
		fmt.Printf("%-60s  %8s  %s\n", e.Name, humanize.Bytes(uint64(e.Size)), e.ModTime.Format("2006-01-02 15:04"))
	}
	fmt.Printf("\n%d entries on %s\n", len(entries), loc.ID())
	return nil
}
