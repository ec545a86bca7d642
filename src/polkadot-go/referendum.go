package polkadot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
)

// Referendum status names, indexed by the ReferendumInfo enum variant.
const (
	StatusOngoing   = "Ongoing"
	StatusApproved  = "Approved"
	StatusRejected  = "Rejected"
	StatusCancelled = "Cancelled"
	StatusTimedOut  = "TimedOut"
	StatusKilled    = "Killed"
)

var referendumVariants = []string{
	StatusOngoing,
	StatusApproved,
	StatusRejected,
	StatusCancelled,
	StatusTimedOut,
	StatusKilled,
}

// ErrReferendumNotFound is returned when no ReferendumInfoFor entry exists.
var ErrReferendumNotFound = errors.New("polkadot: referendum not found")

// DecodeReferendumInfo decodes the raw referendum data
func DecodeReferendumInfo(index uint32, data []byte) (*ReferendumInfo, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty referendum data")
	}

	variant := int(data[0])
	if variant >= len(referendumVariants) {
		return nil, fmt.Errorf("unknown referendum status variant: %d", variant)
	}
	info := &ReferendumInfo{Index: index, Status: referendumVariants[variant]}
	if info.Status != StatusOngoing {
		return info, nil
	}
	return decodeOngoing(data[1:], info)
}

// decodeOngoing reads the fixed-width prefix of ReferendumStatus: track,
// origin, proposal, enactment, submitted. The origin and proposal encodings
// vary by runtime so only the common Lookup/Legacy shapes are skipped; the
// tally is read when the remaining bytes line up.
func decodeOngoing(data []byte, info *ReferendumInfo) (*ReferendumInfo, error) {
	offset := 0

	if len(data) < offset+2 {
		return nil, fmt.Errorf("insufficient data for track")
	}
	info.Track = binary.LittleEndian.Uint16(data[offset : offset+2])
	offset += 2

	// Origin: OriginCaller variant plus inner variant.
	if len(data) < offset+2 {
		return info, nil
	}
	offset += 2

	// Proposal: Bounded<Call>. Legacy/Lookup carry a 32-byte hash.
	if len(data) < offset+1 {
		return info, nil
	}
	switch data[offset] {
	case 0: // Legacy { hash }
		offset += 1 + 32
	case 2: // Lookup { hash, len }
		offset += 1 + 32 + 4
	default:
		return info, nil
	}

	// Enactment: DispatchTime (variant + u32)
	offset += 5

	if len(data) < offset+4 {
		return info, nil
	}
	info.Submitted = binary.LittleEndian.Uint32(data[offset : offset+4])
	offset += 4

	// Submission deposit
	offset += 32 + 16
	// Decision deposit
	if len(data) <= offset {
		return info, nil
	}
	if data[offset] == 1 {
		offset += 1 + 32 + 16
	} else {
		offset++
	}
	// Deciding
	if len(data) <= offset {
		return info, nil
	}
	if data[offset] == 1 {
		offset += 1 + 4
		if len(data) <= offset {
			return info, nil
		}
		if data[offset] == 1 {
			offset += 1 + 4
		} else {
			offset++
		}
	} else {
		offset++
	}

	if len(data) < offset+48 {
		return info, nil
	}
	info.Tally = &Tally{
		Ayes:    decodeU128(data[offset : offset+16]),
		Nays:    decodeU128(data[offset+16 : offset+32]),
		Support: decodeU128(data[offset+32 : offset+48]),
	}
	return info, nil
}

// decodeU128 decodes a little-endian u128.
func decodeU128(le []byte) *big.Int {
	be := make([]byte, len(le))
	for i := range le {
		be[i] = le[len(le)-1-i]
	}
	return new(big.Int).SetBytes(be)
}
