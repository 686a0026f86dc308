// Package journal persists order intents to a write-ahead log so a crashed
// live run leaves an inspectable trail of in-flight submissions.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gowal"

	"github.com/quantfell/parita/internal/domain"
)

const (
	intentKeyPrefix     = "order_intent_"
	walPrefix           = "log_"
	walSegmentThreshold = 1000
	walMaxSegments      = 100
	walDirPermissions   = 0o755

	StatusPending = "pending"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// Intent one journaled order submission.
type Intent struct {
	ID     string          `json:"id"`
	Asset  string          `json:"asset"`
	Side   string          `json:"side"`
	Amount decimal.Decimal `json:"amount"`
	Price  decimal.Decimal `json:"price"`
	Mode   string          `json:"mode"`
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	Time   time.Time       `json:"time"`
}

// Journal WAL-backed order intent journal for one portfolio.
type Journal struct {
	wal     *gowal.Wal
	intents []*Intent
	index   map[string]*Intent
}

// Open initializes the journal under dir and recovers intents written by
// prior runs. Later records for the same intent supersede earlier ones.
func Open(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, walDirPermissions); err != nil {
		return nil, errors.Wrapf(err, "failed to ensure journal directory %s", dir)
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           walPrefix,
		SegmentThreshold: walSegmentThreshold,
		MaxSegments:      walMaxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init order journal WAL")
	}

	j := &Journal{
		wal:   wal,
		index: make(map[string]*Intent),
	}

	for msg := range wal.Iterator() {
		if !strings.HasPrefix(msg.Key, intentKeyPrefix) {
			continue
		}

		var intent Intent
		if err := json.Unmarshal(msg.Value, &intent); err != nil {
			// unreadable record, skip it rather than refuse to start
			continue
		}

		if existing, ok := j.index[intent.ID]; ok {
			*existing = intent
			continue
		}

		rec := intent
		j.intents = append(j.intents, &rec)
		j.index[intent.ID] = &rec
	}

	return j, nil
}

// Prepare records a pending intent for the order before submission.
func (j *Journal) Prepare(order domain.Order) error {
	intent := &Intent{
		ID:     order.ID,
		Asset:  order.Asset,
		Side:   order.Side.String(),
		Amount: order.Amount,
		Price:  order.Price,
		Mode:   string(order.Mode),
		Status: StatusPending,
		Time:   time.Now().UTC(),
	}

	if err := j.persist(intent); err != nil {
		return err
	}

	j.intents = append(j.intents, intent)
	j.index[intent.ID] = intent

	return nil
}

// MarkDone flags the intent as filled.
func (j *Journal) MarkDone(id string) error {
	intent, ok := j.index[id]
	if !ok {
		return fmt.Errorf("unknown intent %s", id)
	}

	intent.Status = StatusDone
	intent.Error = ""

	return j.persist(intent)
}

// MarkFailed flags the intent as failed with its cause.
func (j *Journal) MarkFailed(id string, cause error) error {
	intent, ok := j.index[id]
	if !ok {
		return fmt.Errorf("unknown intent %s", id)
	}

	intent.Status = StatusFailed
	if cause != nil {
		intent.Error = cause.Error()
	}

	return j.persist(intent)
}

// Pending returns intents never marked done or failed, oldest first.
func (j *Journal) Pending() []Intent {
	pending := make([]Intent, 0)
	for _, intent := range j.intents {
		if intent.Status == StatusPending {
			pending = append(pending, *intent)
		}
	}

	return pending
}

func (j *Journal) persist(intent *Intent) error {
	data, err := json.Marshal(intent)
	if err != nil {
		return errors.Wrap(err, "failed to marshal order intent")
	}

	key := fmt.Sprintf("%s%s", intentKeyPrefix, intent.ID)
	nextIndex := j.wal.CurrentIndex() + 1

	return j.wal.Write(nextIndex, key, data)
}
