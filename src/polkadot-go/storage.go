package polkadot

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/OneOfOne/xxhash"
	"golang.org/x/crypto/blake2b"
)

// StorageKey creates a storage key for a pallet and item
func StorageKey(pallet, item string) string {
	key := append(Twox128([]byte(pallet)), Twox128([]byte(item))...)
	return "0x" + hex.EncodeToString(key)
}

// StorageKeyWithHashedKey creates a storage key with a Blake2_128Concat hashed key parameter
func StorageKeyWithHashedKey(pallet, item string, keyData []byte) string {
	key := append(Twox128([]byte(pallet)), Twox128([]byte(item))...)
	hashedKey := append(Blake2_128(keyData), keyData...)
	key = append(key, hashedKey...)
	return "0x" + hex.EncodeToString(key)
}

// StorageKeyUint32 creates a storage key for a uint32 parameter
func StorageKeyUint32(pallet, item string, value uint32) string {
	keyData := make([]byte, 4)
	binary.LittleEndian.PutUint32(keyData, value)
	return StorageKeyWithHashedKey(pallet, item, keyData)
}

// Twox128 implements the TwoX 128-bit hash
func Twox128(data []byte) []byte {
	hash1 := xxhash.NewS64(0)
	hash1.Write(data)
	hash2 := xxhash.NewS64(1)
	hash2.Write(data)

	out := make([]byte, 16)
	binary.LittleEndian.PutUint64(out[0:], hash1.Sum64())
	binary.LittleEndian.PutUint64(out[8:], hash2.Sum64())
	return out
}

// Blake2_128 implements Blake2b 128-bit hash
func Blake2_128(data []byte) []byte {
	// blake2b.New only fails for sizes outside 1..64 or oversized keys.
	h, _ := blake2b.New(16, nil)
	h.Write(data)
	return h.Sum(nil)
}

// Blake2_256 implements Blake2b 256-bit hash. Extrinsic hashes are the
// Blake2_256 of the SCALE-encoded extrinsic.
func Blake2_256(data []byte) []byte {
	sum := blake2b.Sum256(data)
	return sum[:]
}

// HexEncode encodes bytes to a 0x-prefixed hex string
func HexEncode(data []byte) string {
	return "0x" + hex.EncodeToString(data)
}
