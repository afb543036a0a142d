package plugins

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// refreshTimeout bounds one scheduled index download.
const refreshTimeout = 2 * time.Minute

// ScheduleRefresh registers a job on c that force-downloads the plugin
// index on the given cron spec (for example "@every 6h").
func (m *Manager) ScheduleRefresh(c *cron.Cron, spec string) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, m.refresh)
	if err != nil {
		return 0, fmt.Errorf("schedule plugin index refresh %q: %w", spec, err)
	}
	log.Printf("[plugins] index refresh scheduled (%s)", spec)
	return id, nil
}

func (m *Manager) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	res := m.DownloadIndex(ctx, true)
	if !res.Success {
		log.Printf("[plugins] scheduled index refresh failed: %s", res.Message)
	}
}
