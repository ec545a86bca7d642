package webserver

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
	"github.com/golang-jwt/jwt/v5"

	polkadot "github.com/stake-plus/govagent/src/polkadot-go"
)

const tokenLifetime = time.Hour

var errBadSignature = errors.New("signature verification failed")

// verifySignature checks an sr25519 signature over nonce. Wallet extensions
// sign raw payloads wrapped in <Bytes>...</Bytes>, so both forms are accepted.
func verifySignature(addr, sigHex, nonce string) error {
	pubKeyBytes, err := polkadot.DecodeSS58(addr)
	if err != nil {
		return err
	}

	sigBytes, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	if len(sigBytes) != 64 {
		return fmt.Errorf("invalid signature length: %d", len(sigBytes))
	}

	var pkRaw [32]byte
	copy(pkRaw[:], pubKeyBytes)
	var sigRaw [64]byte
	copy(sigRaw[:], sigBytes)

	var pk schnorrkel.PublicKey
	if err = pk.Decode(pkRaw); err != nil {
		return fmt.Errorf("decode public key: %w", err)
	}

	var sig schnorrkel.Signature
	if err = sig.Decode(sigRaw); err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}

	for _, msg := range []string{nonce, "<Bytes>" + nonce + "</Bytes>"} {
		ok, err := pk.Verify(&sig, schnorrkel.NewSigningContext([]byte("substrate"), []byte(msg)))
		if err == nil && ok {
			return nil
		}
	}
	return errBadSignature
}

func issueJWT(addr string, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"addr": addr,
		"exp":  time.Now().Add(tokenLifetime).Unix(),
	})
	return token.SignedString(secret)
}
