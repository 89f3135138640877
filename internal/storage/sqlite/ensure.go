package sqlite

import (
	"github.com/Ip-59/teachai/internal/attemptlog"
	"github.com/Ip-59/teachai/internal/progress"
)

// Ensure SQLite stores implement the storage interfaces.
var (
	_ progress.Store   = (*ProgressStore)(nil)
	_ attemptlog.Store = (*AttemptStore)(nil)
)
