// internal/wallet/wallet.go
package wallet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"gopkg.in/yaml.v3"
)

// Wallet holds the keypair used for the auditor's challenge-response
// login. It never signs transactions; no funds are at risk.
type Wallet struct {
	PrivateKey solana.PrivateKey
	PublicKey  solana.PublicKey
}

// NewWallet creates a wallet from a base58-encoded private key.
func NewWallet(privateKeyBase58 string) (*Wallet, error) {
	raw, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return fromBytes(raw)
}

func fromBytes(raw []byte) (*Wallet, error) {
	if len(raw) != 64 {
		return nil, fmt.Errorf("private key must be 64 bytes, got %d", len(raw))
	}
	privateKey := solana.PrivateKey(raw)
	return &Wallet{
		PrivateKey: privateKey,
		PublicKey:  privateKey.PublicKey(),
	}, nil
}

type walletFile struct {
	PrivateKey string `yaml:"private_key"`
}

// LoadWallet reads a keypair file. Two formats are accepted: a YAML
// document with a base58 private_key field, and the raw JSON byte
// array emitted by solana-keygen.
func LoadWallet(path string) (*Wallet, error) {
	cleanPath := filepath.Clean(path)

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read wallet file: %w", err)
	}

	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("[")) {
		var nums []int
		if err := json.Unmarshal(data, &nums); err != nil {
			return nil, fmt.Errorf("failed to parse keypair array: %w", err)
		}
		raw := make([]byte, len(nums))
		for i, n := range nums {
			if n < 0 || n > 255 {
				return nil, fmt.Errorf("keypair array byte %d out of range", i)
			}
			raw[i] = byte(n)
		}
		return fromBytes(raw)
	}

	var file walletFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse wallet YAML: %w", err)
	}
	if strings.TrimSpace(file.PrivateKey) == "" {
		return nil, fmt.Errorf("wallet file has no private_key")
	}
	return NewWallet(strings.TrimSpace(file.PrivateKey))
}

// SignMessage signs an arbitrary message with the wallet key.
func (w *Wallet) SignMessage(message []byte) ([]byte, error) {
	sig, err := w.PrivateKey.Sign(message)
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}
	return sig[:], nil
}
