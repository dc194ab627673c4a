package configs

import "time"

// Engine tunes the batch scheduler and completion policy. All durations
// accept Go duration strings (e.g. "10s", "500ms").
type Engine struct {
	// BatchSize is the number of recipients claimed per batch. It is
	// clamped to the per-chain maximum at run time.
	BatchSize int `env:"BATCH_SIZE" envDefault:"100"`
	// InterBatchDelay is the pause between consecutive batches of the
	// same campaign.
	InterBatchDelay time.Duration `env:"INTER_BATCH_DELAY" envDefault:"2s"`
	// ConfirmTimeout bounds confirmation polling per transaction.
	ConfirmTimeout time.Duration `env:"CONFIRM_TIMEOUT" envDefault:"3m"`
	// ConfirmPollInterval is the delay between confirmation polls.
	ConfirmPollInterval time.Duration `env:"CONFIRM_POLL_INTERVAL" envDefault:"3s"`
	// AuditInterval is how often counters are reconciled against the
	// recipient ledger while a campaign is sending.
	AuditInterval time.Duration `env:"AUDIT_INTERVAL" envDefault:"30s"`
	// CompleteWithFailures lets a campaign finish as completed even when
	// some recipients failed permanently. When false the campaign pauses
	// instead so the operator can retry or withdraw.
	CompleteWithFailures bool `env:"COMPLETE_WITH_FAILURES" envDefault:"true"`
}

// Vault configures campaign wallet encryption. The passphrase must stay
// stable across restarts or previously created wallets become
// undecryptable.
type Vault struct {
	Passphrase string `env:"PASSPHRASE,required"`
}
