package cronjob

import (
	"sync"
	"time"

	"github.com/samber/lo"
)

const maxRecords = 200

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Record is the outcome of one job execution.
type Record struct {
	ID          uint64        `json:"id"`
	Name        string        `json:"name"`
	ExecuteTime time.Time     `json:"executeTime"`
	Duration    time.Duration `json:"duration"`
	Status      string        `json:"status"`
	Message     string        `json:"message"`
}

// recordBuffer keeps the most recent records in memory.
type recordBuffer struct {
	mu     sync.Mutex
	items  []Record
	limit  int
	nextID uint64
}

func newRecordBuffer(limit int) *recordBuffer {
	return &recordBuffer{limit: limit}
}

func (b *recordBuffer) add(r Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	r.ID = b.nextID
	b.items = append(b.items, r)
	if len(b.items) > b.limit {
		b.items = b.items[len(b.items)-b.limit:]
	}
}

// GetCronjobRecords returns the newest records first, filtered by job names
// and status when given.
func (cm *CronJobManager) GetCronjobRecords(names []string, status string) []Record {
	cm.records.mu.Lock()
	items := append([]Record(nil), cm.records.items...)
	cm.records.mu.Unlock()

	items = lo.Filter(items, func(r Record, _ int) bool {
		if len(names) > 0 && !lo.Contains(names, r.Name) {
			return false
		}
		return status == "" || r.Status == status
	})
	return lo.Reverse(items)
}
