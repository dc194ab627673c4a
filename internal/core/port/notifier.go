package port

import (
	"context"
	"time"
)

// Progress is a per-batch progress event. Emission cadence is batch
// completion, never per-recipient.
type Progress struct {
	CampaignID string    `json:"campaign_id"`
	Completed  int       `json:"completed"`
	Failed     int       `json:"failed"`
	Pending    int       `json:"pending"`
	Total      int       `json:"total"`
	Percent    int       `json:"percent"`
	TxRef      string    `json:"tx_ref,omitempty"`
	At         time.Time `json:"at"`
}

// ProgressNotifier consumes progress events. Implementations must not
// block the scheduler loop on slow consumers.
type ProgressNotifier interface {
	Notify(ctx context.Context, p Progress)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}
