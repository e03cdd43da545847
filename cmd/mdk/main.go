package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version is set at build time
	Version = "dev"

	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "mdk",
		Short: "Media Dock - attach, catalogue and serve removable music storages",
		Long: `mdk (Media Dock) watches mount points for removable media, catalogues
the audio files it finds into a local library with a full-text search
index, and keeps playback state so a listening session survives the
storage being yanked and plugged back in.

The serve command runs the dock as a long-lived daemon with an HTTP
control surface; the remaining commands inspect or rebuild the library
offline.`,
		Version: Version,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.mdk.yaml)")
	rootCmd.PersistentFlags().String("db", "mdk-library.db", "library database file")
	rootCmd.PersistentFlags().String("mounts", "/media", "directory where removable media get mounted")
	rootCmd.PersistentFlags().String("listen", "127.0.0.1:8732", "control API listen address")
	rootCmd.PersistentFlags().String("artifacts", "artifacts", "directory for event logs and reports")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet output (errors only)")

	// Bind flags to viper
	viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("mounts", rootCmd.PersistentFlags().Lookup("mounts"))
	viper.BindPFlag("listen", rootCmd.PersistentFlags().Lookup("listen"))
	viper.BindPFlag("artifacts", rootCmd.PersistentFlags().Lookup("artifacts"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
