package main

import (
	"os"

	"github.com/franz/media-dock/internal/util"
	"github.com/spf13/viper"
)

// initConfig wires the config file and MDK_* environment variables into
// viper. Cobra calls it before any command runs.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in common locations
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".mdk")
		viper.SetConfigType("yaml")
	}

	// Read in environment variables that match
	viper.SetEnvPrefix("MDK")
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && !viper.GetBool("quiet") {
		util.InfoLog("Using config file: %s", viper.ConfigFileUsed())
	}
}

// configWorkers returns the metadata extraction worker count with its
// default applied.
func configWorkers() int {
	workers := viper.GetInt("workers")
	if workers <= 0 {
		workers = 4
	}
	return workers
}

// searchIndexPath places the bleve directory next to the database file, so
// --db relocates both together.
func searchIndexPath(dbPath string) string {
	return dbPath + ".bleve"
}
