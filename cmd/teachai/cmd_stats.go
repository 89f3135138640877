package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/Ip-59/teachai/internal/attemptlog"
	"github.com/Ip-59/teachai/internal/config"
	"github.com/Ip-59/teachai/internal/domain"
	"github.com/Ip-59/teachai/internal/storage/sqlite"
)

// cmdStats shows lesson and attempt statistics from the local database
func cmdStats(args []string) error {
	if len(args) > 0 {
		switch args[0] {
		case "cell":
			if len(args) < 2 {
				return fmt.Errorf("cell ID required (teachai stats cell <id>)")
			}
			return cmdStatsCell(args[1])
		case "overview":
			// fall through
		default:
			return fmt.Errorf("unknown stats command: %s (valid: overview, cell)", args[0])
		}
	}

	return cmdStatsOverview()
}

func openLocalDB() (*sqlite.DB, error) {
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	dbPath := cfg.Storage.SQLitePath
	if dbPath == "" {
		dataDir, err := config.DataDir()
		if err != nil {
			return nil, err
		}
		dbPath = filepath.Join(dataDir, "teachai.db")
	}

	db, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

func cmdStatsOverview() error {
	db, err := openLocalDB()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	store := sqlite.NewProgressStore(db)

	ids, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("list lessons: %w", err)
	}

	if len(ids) == 0 {
		fmt.Println("No lesson progress recorded yet.")
		return nil
	}

	var completed int
	byState := make(map[domain.CompletionState]int)
	for _, id := range ids {
		p, err := store.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("get lesson %s: %w", id, err)
		}
		byState[p.State]++
		if p.State.IsComplete() {
			completed++
		}
	}

	rate := float64(completed) / float64(len(ids))

	fmt.Println("Lesson Completion Overview")
	fmt.Println("==========================")
	fmt.Println()
	fmt.Printf("Lessons started:  %d\n", len(ids))
	fmt.Printf("Completed:        %d %s %.0f%%\n", completed, renderProgressBar(rate, 20), rate*100)
	fmt.Println()

	order := []domain.CompletionState{
		domain.StateFullyComplete,
		domain.StateManuallyComplete,
		domain.StateSkippedComplete,
		domain.StateTaskPassedAwaitingTest,
		domain.StateTestRecorded,
		domain.StateTaskPending,
		domain.StateNotStarted,
	}
	for _, state := range order {
		if n := byState[state]; n > 0 {
			fmt.Printf("  %-26s %d\n", state, n)
		}
	}

	return nil
}

func cmdStatsCell(cellID string) error {
	db, err := openLocalDB()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	attempts := attemptlog.NewService(sqlite.NewAttemptStore(db), nil)

	stats, err := attempts.GetStats(ctx, cellID)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}
	completed, err := attempts.IsCompleted(ctx, cellID)
	if err != nil {
		return fmt.Errorf("check completion: %w", err)
	}

	fmt.Printf("Cell %s\n", cellID)
	fmt.Printf("  attempts:  %d\n", stats.Total)
	fmt.Printf("  succeeded: %d\n", stats.Succeeded)
	if stats.Total > 0 {
		rate := float64(stats.Succeeded) / float64(stats.Total)
		fmt.Printf("  rate:      %s %.0f%%\n", renderProgressBar(rate, 20), rate*100)
	}
	if stats.FirstAt != nil {
		fmt.Printf("  first:     %s\n", stats.FirstAt.Format("2006-01-02 15:04"))
	}
	if stats.LastAt != nil {
		fmt.Printf("  last:      %s\n", stats.LastAt.Format("2006-01-02 15:04"))
	}
	fmt.Printf("  completed: %t\n", completed)

	return nil
}
