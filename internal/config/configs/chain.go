package configs

// EVM configures the EVM chain adapter. Enabled gates dialing the RPC
// endpoint at startup; a disabled family simply rejects campaigns that
// target it.
type EVM struct {
	Enabled bool   `env:"ENABLED" envDefault:"true"`
	RPCAddr string `env:"RPC_ADDRESS" envDefault:"http://localhost:8545"`
	// ChainID is used for EIP-155 signing and must match the node.
	ChainID int64 `env:"CHAIN_ID" envDefault:"1"`
	// GasPriceMultiplier scales the node's suggested gas price in percent
	// (120 = +20%) to reduce underpriced rejections.
	GasPriceMultiplier int64 `env:"GAS_PRICE_MULTIPLIER" envDefault:"120"`
}

// Solana configures the Solana chain adapter.
type Solana struct {
	Enabled bool   `env:"ENABLED" envDefault:"true"`
	RPCAddr string `env:"RPC_ADDRESS" envDefault:"http://localhost:8899"`
	// Commitment is the confirmation level polled for ("processed",
	// "confirmed" or "finalized").
	Commitment string `env:"COMMITMENT" envDefault:"confirmed"`
}

// AMQP configures the progress event publisher. An empty Addr disables
// publishing entirely.
type AMQP struct {
	Addr     string `env:"ADDRESS" envDefault:""`
	Exchange string `env:"EXCHANGE" envDefault:"tokendrop.progress"`
}
