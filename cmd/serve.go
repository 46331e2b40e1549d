package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	_ "modernc.org/sqlite"

	"github.com/rowcache/tablecache/internal/backcache"
	"github.com/rowcache/tablecache/internal/demoproducer"
	"github.com/rowcache/tablecache/internal/frontmodel"
	"github.com/rowcache/tablecache/internal/tuiview"
)

var (
	serveDBPath    string
	serveWatchDir  string
	serveCronSpec  string
	serveChurnRows int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the interactive TUI over a live front/back pipeline.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveDBPath, "db", ":memory:", "sqlite database path (':memory:' for ephemeral)")
	serveCmd.Flags().StringVar(&serveWatchDir, "watch-dir", "", "directory to watch for dropped CSV files (disabled if empty)")
	serveCmd.Flags().StringVar(&serveCronSpec, "churn-cron", "@every 5s", "cron spec scheduling synthetic row churn (disabled if empty)")
	serveCmd.Flags().IntVar(&serveChurnRows, "churn-rows", 5, "rows upserted per scheduled churn burst")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	db, err := sql.Open("sqlite", serveDBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	schema := demoSchema()
	adapter := tuiview.NewAdapter()

	front, err := frontmodel.New(frontmodel.Config{
		DB: db,
		Back: backcache.Config{
			Schema:       schema,
			WindowOffset: backcache.WindowOffset,
		},
		View: adapter,
	})
	if err != nil {
		return fmt.Errorf("construct front model: %w", err)
	}
	defer front.Stop()

	producer, err := demoproducer.New(front, demoproducer.Config{
		WatchDir:      serveWatchDir,
		Schema:        schema,
		ChurnCronSpec: serveCronSpec,
		ChurnRowCount: serveChurnRows,
	})
	if err != nil {
		return fmt.Errorf("construct demo producer: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := producer.Start(ctx); err != nil {
		return fmt.Errorf("start demo producer: %w", err)
	}
	defer producer.Stop()

	front.InitDbTableAsync()

	tuiModel := tuiview.New(front, adapter, schema)
	program := tea.NewProgram(tuiModel, tea.WithAltScreen(), tea.WithMouseCellMotion())
	adapter.SetProgram(program)

	_, err = program.Run()
	return err
}
