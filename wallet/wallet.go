package wallet

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"os"
	"strings"

	"github.com/crytic/abirunner/logging"
	"github.com/crytic/abirunner/logging/colors"
	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/crypto"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// DefaultWalletFile is the wallet file name used when none is provided.
const DefaultWalletFile = "wallet.json"

// octraAddressPrefix prefixes every Octra account address.
const octraAddressPrefix = "oct"

// walletLogger is the logger used by the wallet package.
var walletLogger = logging.GlobalLogger.NewSubLogger("module", logging.WALLET_SERVICE)

// Wallet describes the credentials of the account a run acts on behalf of, along with the endpoint of the node it
// talks to.
type Wallet struct {
	// PrivateKey is the encoded private key: base64 for Octra accounts, hex for EVM accounts.
	PrivateKey string `json:"priv"`
	// Address is the account address.
	Address string `json:"addr"`
	// RPC is the node endpoint.
	RPC string `json:"rpc"`
}

// LoadFromFile reads a wallet from the provided JSON file. Every field must be set.
func LoadFromFile(path string) (*Wallet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read wallet file %s", path)
	}

	var w Wallet
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, errors.Wrapf(err, "unable to parse wallet file %s", path)
	}
	if err := w.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid wallet file %s", path)
	}
	return &w, nil
}

// Validate checks that every wallet field is set.
func (w *Wallet) Validate() error {
	if strings.TrimSpace(w.PrivateKey) == "" {
		return errors.New("private key must be set")
	}
	if strings.TrimSpace(w.Address) == "" {
		return errors.New("address must be set")
	}
	if strings.TrimSpace(w.RPC) == "" {
		return errors.New("rpc endpoint must be set")
	}
	return nil
}

// Ed25519Key decodes the private key as a base64 ed25519 key. Both a 32-byte seed and a 64-byte private key are
// accepted.
func (w *Wallet) Ed25519Key() (ed25519.PrivateKey, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(w.PrivateKey))
	if err != nil {
		return nil, errors.Wrap(err, "private key is not valid base64")
	}

	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	default:
		return nil, errors.Errorf("ed25519 private key must be %d or %d bytes, got %d", ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
	}
}

// ECDSAKey decodes the private key as a hex secp256k1 key. A 0x prefix is allowed.
func (w *Wallet) ECDSAKey() (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(w.PrivateKey), "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "private key is not a valid secp256k1 key")
	}
	return key, nil
}

// DeriveOctraAddress derives the Octra address of an ed25519 public key.
func DeriveOctraAddress(pub ed25519.PublicKey) string {
	digest := sha256.Sum256(pub)
	return octraAddressPrefix + base58.Encode(digest[:])
}

// CheckOctraAddress decodes the ed25519 key and warns if the configured address was not derived from it. A mismatch
// does not prevent a run since nodes authenticate by signature.
func (w *Wallet) CheckOctraAddress() (ed25519.PrivateKey, bool, error) {
	key, err := w.Ed25519Key()
	if err != nil {
		return nil, false, err
	}

	derived := DeriveOctraAddress(key.Public().(ed25519.PublicKey))
	if derived != w.Address {
		walletLogger.Warn("Wallet address ", colors.Bold, w.Address, colors.Reset, " does not match the address derived from its key: ", derived)
		return key, false, nil
	}
	return key, true, nil
}

// CheckEVMAddress decodes the secp256k1 key and warns if the configured address was not derived from it.
func (w *Wallet) CheckEVMAddress() (*ecdsa.PrivateKey, bool, error) {
	key, err := w.ECDSAKey()
	if err != nil {
		return nil, false, err
	}

	derived := crypto.PubkeyToAddress(key.PublicKey)
	if !common.IsHexAddress(w.Address) || common.HexToAddress(w.Address) != derived {
		walletLogger.Warn("Wallet address ", colors.Bold, w.Address, colors.Reset, " does not match the address derived from its key: ", derived.Hex())
		return key, false, nil
	}
	return key, true, nil
}

// WriteToFile writes the wallet as indented JSON, readable only by the current user.
func (w *Wallet) WriteToFile(path string) error {
	data, err := json.MarshalIndent(w, "", "\t")
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.WriteFile(path, data, 0600))
}
