package backup

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ActiveProjects reports which projects currently have running tasks; the
// scheduler provides this.
type ActiveProjects func() []string

// RunInterval snapshots every active project's checkpoint on a wall-clock
// interval until ctx is cancelled. Intended to run in its own goroutine
// alongside the event-driven snapshots the graph fires per stage.
func (m *Manager) RunInterval(ctx context.Context, interval time.Duration, active ActiveProjects) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, projectID := range active() {
				if _, err := m.Create(projectID); err != nil {
					zap.L().Warn("backup: interval snapshot failed",
						zap.String("project_id", projectID),
						zap.Error(err),
					)
				}
			}
		}
	}
}
