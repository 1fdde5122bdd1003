package job

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/studybuddy/internal/vector"
	"github.com/hyperjump/studybuddy/pkg/utils"
)

// SnapshotJob persists the vector index. Runs where the index has not grown since the last
// save are no-ops, since the index is append-only.
type SnapshotJob struct {
	index  vector.VectorIndex
	path   string
	logger *zap.Logger

	mu        sync.Mutex
	savedSize int
}

func NewSnapshotJob(index vector.VectorIndex, path string, logger *zap.Logger) *SnapshotJob {
	return &SnapshotJob{index: index, path: path, logger: utils.OrNop(logger), savedSize: -1}
}

func (j *SnapshotJob) Name() string { return "index-snapshot" }

func (j *SnapshotJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	size := j.index.Size()
	if size == j.savedSize {
		j.logger.Debug("index unchanged, snapshot skipped", zap.Int("size", size))
		return nil
	}
	if err := j.index.Save(j.path); err != nil {
		return fmt.Errorf("save index snapshot: %w", err)
	}
	j.savedSize = size
	j.logger.Info("index snapshot saved", zap.String("path", j.path), zap.Int("size", size))
	return nil
}
