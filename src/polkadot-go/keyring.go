package polkadot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/centrifuge/go-substrate-rpc-client/v4/signature"
	"github.com/cosmos/go-bip39"
)

// ErrNoSigner is returned by SubmitVote when no seed was configured.
var ErrNoSigner = errors.New("polkadot: no signing key configured")

// Signer holds the agent's sr25519 keypair.
type Signer struct {
	pair    signature.KeyringPair
	address string
}

// NewSigner derives a keypair from a mnemonic (optionally followed by a
// //hard/soft derivation path), a dev URI such as //Alice, or a 0x seed.
func NewSigner(seed string, prefix uint16) (*Signer, error) {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return nil, ErrNoSigner
	}
	if phrase := mnemonicPart(seed); phrase != "" && !bip39.IsMnemonicValid(phrase) {
		return nil, fmt.Errorf("polkadot: invalid mnemonic")
	}

	pair, err := signature.KeyringPairFromSecret(seed, prefix)
	if err != nil {
		return nil, fmt.Errorf("polkadot: derive keypair: %w", err)
	}
	return &Signer{pair: pair, address: EncodeSS58(pair.PublicKey, prefix)}, nil
}

// Address returns the SS58 address of the signing account.
func (s *Signer) Address() string { return s.address }

// PublicKey returns the raw 32-byte public key.
func (s *Signer) PublicKey() []byte { return s.pair.PublicKey }

func mnemonicPart(seed string) string {
	if strings.HasPrefix(seed, "0x") {
		return ""
	}
	if i := strings.Index(seed, "/"); i >= 0 {
		seed = seed[:i]
	}
	return strings.TrimSpace(seed)
}
