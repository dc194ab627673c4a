package memory

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tokendrop/internal/core/domain"
	"tokendrop/internal/core/port"
)

// TransactionLog is an in-memory port.TransactionLog.
type TransactionLog struct {
	mu      sync.RWMutex
	records []domain.TransactionRecord
}

func NewTransactionLog() *TransactionLog {
	return &TransactionLog{}
}

func (l *TransactionLog) Append(_ context.Context, rec domain.TransactionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	return nil
}

func (l *TransactionLog) UpdateStatus(_ context.Context, id string, status domain.TxStatus, fee decimal.Decimal, errText string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.records {
		if l.records[i].ID == id {
			l.records[i].Status = status
			l.records[i].Fee = fee
			l.records[i].ErrorText = errText
			l.records[i].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return domain.ErrTxRecordNotFound
}

func (l *TransactionLog) List(_ context.Context, campaignID string, filter port.TxFilter) ([]domain.TransactionRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.TransactionRecord
	for _, rec := range l.records {
		if rec.CampaignID != campaignID {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		if !filter.Since.IsZero() && rec.SubmittedAt.Before(filter.Since) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
