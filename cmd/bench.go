package cmd

import (
	"database/sql"
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	_ "modernc.org/sqlite"

	"github.com/rowcache/tablecache/internal/backcache"
	"github.com/rowcache/tablecache/internal/frontmodel"
	"github.com/rowcache/tablecache/internal/rowschema"
)

var (
	benchRows    int
	benchBatches int
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure heavy-dispatch throughput against an in-memory database.",
	RunE:  runBench,
}

func init() {
	benchCmd.Flags().IntVar(&benchRows, "rows", 1000, "rows per ingested batch")
	benchCmd.Flags().IntVar(&benchBatches, "batches", 20, "number of batches to ingest")
	rootCmd.AddCommand(benchCmd)
}

func runBench(cmd *cobra.Command, args []string) error {
	db, err := sql.Open("sqlite", ":memory:")
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

	start := time.Now()
	var nextID int64
	for i := 0; i < benchBatches; i++ {
		batch := rowschema.DeltaBatch{}
		for j := 0; j < benchRows; j++ {
			nextID++
			batch.Deltas = append(batch.Deltas, rowschema.NewUpsert(rowschema.Row{
				rowschema.CellInt64(nextID),
				rowschema.CellString(fmt.Sprintf("item-%d", nextID)),
				rowschema.CellString(fmt.Sprintf("cat-%d", nextID%10)),
				rowschema.CellFloat64(rand.Float64() * 1000),
				rowschema.CellBool(nextID%2 == 0),
			}))
		}
		front.SetLoadingStatus(backcache.LoadingStarted)
		front.IngestDeltas(batch)
		front.SetLoadingStatus(backcache.LoadingFinished)
		if err := waitSnapshotCount(front, int(nextID), 30*time.Second); err != nil {
			return err
		}
	}
	elapsed := time.Since(start)

	total := benchRows * benchBatches
	errHandler.Success(fmt.Sprintf(
		"ingested %d rows in %d batches across %s (%.0f rows/sec)",
		total, benchBatches, elapsed, float64(total)/elapsed.Seconds(),
	))
	return nil
}

func waitSnapshotCount(front *frontmodel.Model, want int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if err := front.TerminalError(); err != nil {
			return err
		}
		if front.Snapshot().RecordsCount >= want {
			return nil
		}
		time.Sleep(time.Millisecond)
	}
	return fmt.Errorf("timed out waiting for record count %d", want)
}
