package polkadot

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// EncodeSS58 encodes a 32-byte public key as an SS58 address for prefix.
func EncodeSS58(pubKey []byte, prefix uint16) string {
	payload := append(ss58PrefixBytes(prefix), pubKey...)
	checksum := ss58Checksum(payload)
	return base58.Encode(append(payload, checksum[0:2]...))
}

// DecodeSS58 converts an SS58 (or 0x-hex) address to the raw 32-byte public key.
func DecodeSS58(addr string) ([]byte, error) {
	addr = strings.TrimSpace(addr)
	if strings.HasPrefix(addr, "0x") {
		raw, err := hex.DecodeString(addr[2:])
		if err != nil || len(raw) != 32 {
			return nil, fmt.Errorf("invalid hex account id")
		}
		return raw, nil
	}

	raw, err := base58.Decode(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid ss58 address: %w", err)
	}
	prefixLen := 1
	if len(raw) > 0 && raw[0]&0x40 != 0 {
		prefixLen = 2
	}
	if len(raw) != prefixLen+32+2 {
		return nil, fmt.Errorf("invalid ss58 address length %d", len(raw))
	}
	body := raw[:prefixLen+32]
	checksum := ss58Checksum(body)
	if !bytes.Equal(checksum[0:2], raw[prefixLen+32:]) {
		return nil, fmt.Errorf("invalid ss58 checksum")
	}
	return append([]byte(nil), raw[prefixLen:prefixLen+32]...), nil
}

func ss58PrefixBytes(prefix uint16) []byte {
	if prefix < 64 {
		return []byte{byte(prefix)}
	}
	return []byte{
		((byte(prefix) & 0xfc) >> 2) | 0x40,
		byte(prefix>>8) | (byte(prefix)&0x03)<<6,
	}
}

func ss58Checksum(payload []byte) []byte {
	h, _ := blake2b.New512(nil)
	h.Write([]byte("SS58PRE"))
	h.Write(payload)
	return h.Sum(nil)
}
