package cmd

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	_ "modernc.org/sqlite"

	"github.com/rowcache/tablecache/internal/backcache"
	"github.com/rowcache/tablecache/internal/frontmodel"
)

var (
	exportDBPath string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export an existing table to CSV and exit.",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportDBPath, "db", "", "sqlite database path (required)")
	exportCmd.Flags().StringVar(&exportOut, "out", "export.csv", "output CSV path")
	exportCmd.MarkFlagRequired("db")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	db, err := sql.Open("sqlite", exportDBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	front, err := frontmodel.New(frontmodel.Config{
		DB:   db,
		Back: backcache.Config{Schema: demoSchema()},
	})
	if err != nil {
		return fmt.Errorf("construct front model: %w", err)
	}
	defer front.Stop()

	front.InitDbTableAsync()
	if err := waitReady(front, 10*time.Second); err != nil {
		return err
	}

	done := make(chan error, 1)
	front.ExportAsync(exportOut, nil, 0, nil, func() bool { return false }, func(err error) {
		done <- err
	})

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
	case <-time.After(time.Minute):
		return fmt.Errorf("export timed out")
	}

	errHandler.Success(fmt.Sprintf("exported to %s", exportOut))
	return nil
}

// waitReady polls until front's first InitDbTableAsync call completes,
// or returns its terminal error if it fails.
func waitReady(front *frontmodel.Model, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if err := front.TerminalError(); err != nil {
			return err
		}
		if front.Ready() {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fmt.Errorf("timed out waiting for database initialization")
}
