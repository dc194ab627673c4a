package port

import (
	"context"

	"tokendrop/internal/core/domain"
)

// WalletVault creates and holds one keypair per campaign. Private
// material is encrypted at rest and only ever leaves through
// ExportPrivateKey; Sign exposes signing capability without exposing key
// bytes. The engine never deletes key material.
type WalletVault interface {
	// CreateWallet generates a keypair for the campaign and returns its
	// public address. Exactly one wallet exists per campaign; wallets
	// are never reused across campaigns.
	CreateWallet(ctx context.Context, campaignID string, family domain.ChainFamily) (string, error)

	// Address returns the campaign wallet's public address.
	Address(ctx context.Context, campaignID string) (string, error)

	// Sign signs a chain-specific payload (a 32-byte digest for EVM, the
	// serialized message for Solana) with the campaign's key.
	Sign(ctx context.Context, campaignID string, payload []byte) ([]byte, error)

	// ExportPrivateKey returns the private key in the chain family's
	// conventional encoding: hex for EVM, base58 byte-array encoding for
	// Solana. The vault chooses the encoding because only it knows the
	// family.
	ExportPrivateKey(ctx context.Context, campaignID string) (string, error)
}
