package ledger

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	logger "github.com/sirupsen/logrus"
)

// Signer signs transactions for one account.
type Signer interface {
	Name() string
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// SignerProvider is one candidate source of a Signer. Detect returns
// ErrProviderUnavailable when the provider is not configured.
type SignerProvider interface {
	Name() string
	Detect() (Signer, error)
}

var ErrProviderUnavailable = errors.New("signer provider not configured")

type keySigner struct {
	name string
	key  *ecdsa.PrivateKey
	addr common.Address
}

func newKeySigner(name string, key *ecdsa.PrivateKey) *keySigner {
	return &keySigner{name: name, key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}
}

func (s *keySigner) Name() string            { return s.name }
func (s *keySigner) Address() common.Address { return s.addr }

func (s *keySigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}

// HexKeyProvider reads a raw hex private key, with or without 0x.
type HexKeyProvider struct {
	Key string
}

func (HexKeyProvider) Name() string { return "hex-key" }

func (p HexKeyProvider) Detect() (Signer, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(p.Key), "0x")
	if trimmed == "" {
		return nil, ErrProviderUnavailable
	}
	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return newKeySigner(p.Name(), key), nil
}

// KeystoreProvider decrypts an encrypted JSON keystore file.
type KeystoreProvider struct {
	Path     string
	Password string
}

func (KeystoreProvider) Name() string { return "keystore" }

func (p KeystoreProvider) Detect() (Signer, error) {
	if strings.TrimSpace(p.Path) == "" {
		return nil, ErrProviderUnavailable
	}
	raw, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("read keystore %s: %w", p.Path, err)
	}
	key, err := keystore.DecryptKey(raw, p.Password)
	if err != nil {
		return nil, fmt.Errorf("decrypt keystore %s: %w", p.Path, err)
	}
	return newKeySigner(p.Name(), key.PrivateKey), nil
}

// ProvidersFromConfig lists the candidates in priority order.
func ProvidersFromConfig(cfg Config) []SignerProvider {
	return []SignerProvider{
		HexKeyProvider{Key: cfg.PrivateKey},
		KeystoreProvider{Path: cfg.KeystorePath, Password: cfg.KeystorePassword},
	}
}

// NegotiateSigner detects every provider and picks the first available one in
// the given order. A nil Signer with a nil error means read-only operation.
// A provider that is configured but broken is a configuration error.
func NegotiateSigner(providers ...SignerProvider) (Signer, error) {
	var chosen Signer
	var detected []string
	for _, p := range providers {
		s, err := p.Detect()
		if errors.Is(err, ErrProviderUnavailable) {
			continue
		}
		if err != nil {
			return nil, NewError(KindConfiguration, "negotiate signer", p.Name(), err)
		}
		detected = append(detected, p.Name())
		if chosen == nil {
			chosen = s
		}
	}

	if chosen == nil {
		logger.Warn("no signer provider detected, ledger is read-only")
		return nil, nil
	}
	fields := map[string]interface{}{
		"provider": chosen.Name(),
		"address":  chosen.Address().Hex(),
	}
	if len(detected) > 1 {
		fields["detected"] = strings.Join(detected, ",")
		logger.WithFields(fields).Warn("multiple signer providers detected, using the first by priority")
	} else {
		logger.WithFields(fields).Info("signer provider selected")
	}
	return chosen, nil
}
