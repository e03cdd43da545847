package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/franz/media-dock/internal/library"
	"github.com/franz/media-dock/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the environment and configuration",
	Long: `Run diagnostic checks to ensure mdk can operate correctly.

This command checks:
- SQLite version and library database integrity
- Database journal mode (WAL keeps readers alive during indexing)
- Mount directory accessibility
- Search index health
- Artifacts directory writability
- Disk space availability

Use this command to troubleshoot issues before running mdk operations.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	util.InfoLog("=== Media Dock Doctor - System Diagnostics ===")
	util.InfoLog("")

	results := []checkResult{}

	// 1. Check SQLite
	results = append(results, checkSQLite())

	// 2. Check library database
	dbPath := viper.GetString("db")
	results = append(results, checkDatabase(dbPath))

	// 3. Check journal mode
	results = append(results, checkJournalMode(dbPath))

	// 4. Check mount directory
	mounts := viper.GetString("mounts")
	if mounts != "" {
		results = append(results, checkMountDirectory(mounts))
	}

	// 5. Check search index
	results = append(results, checkSearchIndex(dbPath))

	// 6. Check artifacts directory
	artifacts := viper.GetString("artifacts")
	if artifacts != "" {
		results = append(results, checkArtifactsDirectory(artifacts))
	}

	// 7. Check disk space
	dbDir := filepath.Dir(dbPath)
	results = append(results, checkDiskSpace(dbDir, "library"))
	if mounts != "" && mounts != dbDir {
		results = append(results, checkDiskSpace(mounts, "mounts"))
	}

	// Print results
	util.InfoLog("")
	util.InfoLog("=== Diagnostic Results ===")
	util.InfoLog("")

	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}

	// Summary
	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("❌ Some critical checks failed. Please resolve errors before running mdk.")
		return fmt.Errorf("system diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("⚠️  Some checks produced warnings. Review them before proceeding.")
	} else {
		util.SuccessLog("✅ All checks passed! System is ready for mdk operations.")
	}

	return nil
}

// checkSQLite verifies the embedded SQLite version
func checkSQLite() checkResult {
	// modernc.org/sqlite needs no external library; just confirm the version
	version := library.SQLiteVersion()
	if version == "" {
		return checkResult{
			name:    "SQLite",
			error:   true,
			message: "unable to determine version",
		}
	}

	return checkResult{
		name:    "SQLite",
		message: fmt.Sprintf("version %s (built-in)", version),
	}
}

// checkDatabase verifies library database accessibility and integrity
func checkDatabase(dbPath string) checkResult {
	if dbPath == "" {
		return checkResult{
			name:    "Database",
			warning: true,
			message: "no database path specified (use --db flag or config)",
		}
	}

	// Check if database exists
	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return checkResult{
				name:    "Database",
				message: fmt.Sprintf("%s (will be created on first run)", dbPath),
			}
		}
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", dbPath, err),
		}
	}

	// Check if it's a regular file
	if !info.Mode().IsRegular() {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("%s is not a regular file", dbPath),
		}
	}

	// Try to open it
	st, err := library.Open(dbPath)
	if err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot open %s: %v", dbPath, err),
		}
	}
	defer st.Close()

	// Check integrity
	if err := st.CheckIntegrity(); err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("integrity check failed: %v", err),
		}
	}

	// Get some stats
	trackCount, _ := st.CountTracks("")
	size := humanize.Bytes(uint64(info.Size()))

	return checkResult{
		name:    "Database",
		message: fmt.Sprintf("%s (%s, %d tracks)", dbPath, size, trackCount),
	}
}

// checkJournalMode verifies the database runs in WAL mode, which keeps
// status reads responsive while an indexing pass writes
func checkJournalMode(dbPath string) checkResult {
	if dbPath == "" {
		return checkResult{
			name:    "Journal mode",
			warning: true,
			message: "no database path specified",
		}
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return checkResult{
			name:    "Journal mode",
			message: "WAL (set when the database is created)",
		}
	}

	st, err := library.Open(dbPath)
	if err != nil {
		return checkResult{
			name:    "Journal mode",
			error:   true,
			message: fmt.Sprintf("cannot open %s: %v", dbPath, err),
		}
	}
	defer st.Close()

	var mode string
	if err := st.DB().QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		return checkResult{
			name:    "Journal mode",
			warning: true,
			message: fmt.Sprintf("cannot determine journal mode: %v", err),
		}
	}

	if !strings.EqualFold(mode, "wal") {
		return checkResult{
			name:    "Journal mode",
			warning: true,
			message: fmt.Sprintf("%s (expected wal; concurrent reads will block)", mode),
		}
	}

	return checkResult{
		name:    "Journal mode",
		message: "wal",
	}
}

// checkMountDirectory verifies the mount watch directory is readable
func checkMountDirectory(path string) checkResult {
	info, err := os.Stat(path)
	if err != nil {
		return checkResult{
			name:    "Mount directory",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", path, err),
		}
	}

	if !info.IsDir() {
		return checkResult{
			name:    "Mount directory",
			error:   true,
			message: fmt.Sprintf("%s is not a directory", path),
		}
	}

	// Check read permission by trying to list directory
	entries, err := os.ReadDir(path)
	if err != nil {
		return checkResult{
			name:    "Mount directory",
			error:   true,
			message: fmt.Sprintf("cannot read %s: %v", path, err),
		}
	}

	return checkResult{
		name:    "Mount directory",
		message: fmt.Sprintf("%s (%d entries)", path, len(entries)),
	}
}

// checkSearchIndex verifies the bleve index opens
func checkSearchIndex(dbPath string) checkResult {
	if dbPath == "" {
		return checkResult{
			name:    "Search index",
			warning: true,
			message: "no database path specified",
		}
	}

	path := searchIndexPath(dbPath)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return checkResult{
			name:    "Search index",
			message: fmt.Sprintf("%s (will be created on first run)", path),
		}
	}

	search, err := library.OpenSearchIndex(path)
	if err != nil {
		return checkResult{
			name:    "Search index",
			error:   true,
			message: fmt.Sprintf("cannot open %s: %v", path, err),
		}
	}
	defer search.Close()

	docs, err := search.DocCount()
	if err != nil {
		return checkResult{
			name:    "Search index",
			warning: true,
			message: fmt.Sprintf("open but unreadable: %v", err),
		}
	}

	return checkResult{
		name:    "Search index",
		message: fmt.Sprintf("%s (%d documents)", path, docs),
	}
}

// checkArtifactsDirectory verifies the artifacts directory is writable
func checkArtifactsDirectory(path string) checkResult {
	// Check if exists
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Try to create it
			if err := os.MkdirAll(path, 0755); err != nil {
				return checkResult{
					name:    "Artifacts directory",
					error:   true,
					message: fmt.Sprintf("cannot create %s: %v", path, err),
				}
			}
			return checkResult{
				name:    "Artifacts directory",
				message: fmt.Sprintf("%s (created)", path),
			}
		}
		return checkResult{
			name:    "Artifacts directory",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", path, err),
		}
	}

	if !info.IsDir() {
		return checkResult{
			name:    "Artifacts directory",
			error:   true,
			message: fmt.Sprintf("%s is not a directory", path),
		}
	}

	// Check write permission by creating a temp file
	testFile := filepath.Join(path, ".mdk_write_test")
	f, err := os.Create(testFile)
	if err != nil {
		return checkResult{
			name:    "Artifacts directory",
			error:   true,
			message: fmt.Sprintf("cannot write to %s: %v", path, err),
		}
	}
	f.Close()
	os.Remove(testFile)

	return checkResult{
		name:    "Artifacts directory",
		message: fmt.Sprintf("%s (writable)", path),
	}
}

// checkDiskSpace verifies available disk space
func checkDiskSpace(path string, label string) checkResult {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return checkResult{
			name:    fmt.Sprintf("Disk space (%s)", label),
			warning: true,
			message: fmt.Sprintf("cannot determine disk space: %v", err),
		}
	}

	// Available bytes = available blocks * block size
	availBytes := stat.Bavail * uint64(stat.Bsize)
	totalBytes := stat.Blocks * uint64(stat.Bsize)
	usedBytes := totalBytes - (stat.Bfree * uint64(stat.Bsize))

	availGB := float64(availBytes) / (1024 * 1024 * 1024)
	usedPercent := float64(usedBytes) / float64(totalBytes) * 100

	// Warn if less than 1GB available or >90% used
	warning := false
	warningMsg := ""
	if availGB < 1 {
		warning = true
		warningMsg = " (low space!)"
	} else if usedPercent > 90 {
		warning = true
		warningMsg = " (>90% used)"
	}

	return checkResult{
		name:    fmt.Sprintf("Disk space (%s)", label),
		warning: warning,
		message: fmt.Sprintf("%.1f GB available%s", availGB, warningMsg),
	}
}
