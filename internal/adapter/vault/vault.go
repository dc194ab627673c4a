package vault

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	solana "github.com/gagliardetto/solana-go"
	"golang.org/x/crypto/scrypt"

	"tokendrop/internal/core/domain"
)

// scrypt parameters for the at-rest key derivation.
const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	derivedBytes = 32
	saltBytes    = 32
)

// Vault implements port.WalletVault. One keypair per campaign, private
// material AES-256-GCM encrypted under a passphrase-derived key. Key
// bytes only leave through ExportPrivateKey.
type Vault struct {
	store      Store
	passphrase []byte
}

func New(store Store, passphrase string) *Vault {
	return &Vault{store: store, passphrase: []byte(passphrase)}
}

func (v *Vault) CreateWallet(ctx context.Context, campaignID string, family domain.ChainFamily) (string, error) {
	var (
		priv    []byte
		address string
	)
	switch family {
	case domain.ChainFamilyEVM:
		key, err := ethcrypto.GenerateKey()
		if err != nil {
			return "", fmt.Errorf("generate secp256k1 key: %w", err)
		}
		priv = ethcrypto.FromECDSA(key)
		address = ethcrypto.PubkeyToAddress(key.PublicKey).Hex()
	case domain.ChainFamilySolana:
		w := solana.NewWallet()
		priv = []byte(w.PrivateKey)
		address = w.PublicKey().String()
	default:
		return "", domain.ErrUnsupportedChain
	}

	rec, err := v.seal(campaignID, family, address, priv)
	if err != nil {
		return "", err
	}
	if err := v.store.Put(ctx, rec); err != nil {
		return "", fmt.Errorf("store wallet: %w", err)
	}
	return address, nil
}

func (v *Vault) Address(ctx context.Context, campaignID string) (string, error) {
	rec, err := v.store.Get(ctx, campaignID)
	if err != nil {
		return "", err
	}
	return rec.Address, nil
}

func (v *Vault) Sign(ctx context.Context, campaignID string, payload []byte) ([]byte, error) {
	rec, err := v.store.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	priv, err := v.open(rec)
	if err != nil {
		return nil, err
	}
	switch rec.Family {
	case domain.ChainFamilyEVM:
		if len(payload) != 32 {
			return nil, errors.New("evm signing payload must be a 32-byte digest")
		}
		key, err := ethcrypto.ToECDSA(priv)
		if err != nil {
			return nil, fmt.Errorf("decode secp256k1 key: %w", err)
		}
		return ethcrypto.Sign(payload, key)
	case domain.ChainFamilySolana:
		if len(priv) != ed25519.PrivateKeySize {
			return nil, errors.New("stored ed25519 key has unexpected length")
		}
		return ed25519.Sign(ed25519.PrivateKey(priv), payload), nil
	default:
		return nil, domain.ErrUnsupportedChain
	}
}

func (v *Vault) ExportPrivateKey(ctx context.Context, campaignID string) (string, error) {
	rec, err := v.store.Get(ctx, campaignID)
	if err != nil {
		return "", err
	}
	priv, err := v.open(rec)
	if err != nil {
		return "", err
	}
	switch rec.Family {
	case domain.ChainFamilyEVM:
		return hex.EncodeToString(priv), nil
	case domain.ChainFamilySolana:
		return solana.PrivateKey(priv).String(), nil
	default:
		return "", domain.ErrUnsupportedChain
	}
}

func (v *Vault) seal(campaignID string, family domain.ChainFamily, address string, priv []byte) (Record, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return Record{}, err
	}
	key, err := scrypt.Key(v.passphrase, salt, scryptN, scryptR, scryptP, derivedBytes)
	if err != nil {
		return Record{}, fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return Record{}, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return Record{}, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return Record{}, err
	}
	return Record{
		CampaignID: campaignID,
		Family:     family,
		Address:    address,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: gcm.Seal(nil, nonce, priv, nil),
		CreatedAt:  time.Now().UTC(),
	}, nil
}

func (v *Vault) open(rec Record) ([]byte, error) {
	key, err := scrypt.Key(v.passphrase, rec.Salt, scryptN, scryptR, scryptP, derivedBytes)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	priv, err := gcm.Open(nil, rec.Nonce, rec.Ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt wallet key: %w", err)
	}
	return priv, nil
}
