package uid

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

// Encoder builds the canonical byte string a UID is derived from.
//
// Layout rules:
//   - fixed-width fields are written as-is (integers big-endian)
//   - variable-width fields carry a 4-byte big-endian length prefix
//   - booleans are a single 0x00/0x01 byte
//
// Fields are order-sensitive; the same values written in a different order
// produce a different encoding.
type Encoder struct {
	buf []byte
}

func NewEncoder(domain string) *Encoder {
	e := &Encoder{buf: make([]byte, 0, 256)}
	e.String(domain)
	return e
}

func (e *Encoder) Bytes32(v [32]byte) *Encoder {
	e.buf = append(e.buf, v[:]...)
	return e
}

func (e *Encoder) Address(a common.Address) *Encoder {
	e.buf = append(e.buf, a.Bytes()...)
	return e
}

func (e *Encoder) Uint64(v uint64) *Encoder {
	e.buf = binary.BigEndian.AppendUint64(e.buf, v)
	return e
}

func (e *Encoder) Bool(v bool) *Encoder {
	if v {
		e.buf = append(e.buf, 1)
	} else {
		e.buf = append(e.buf, 0)
	}
	return e
}

func (e *Encoder) Blob(b []byte) *Encoder {
	e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(len(b)))
	e.buf = append(e.buf, b...)
	return e
}

func (e *Encoder) String(s string) *Encoder {
	return e.Blob([]byte(s))
}

// Encoded returns the bytes written so far. The slice is owned by the caller.
func (e *Encoder) Encoded() []byte {
	out := make([]byte, len(e.buf))
	copy(out, e.buf)
	return out
}

// Sum hashes the encoding.
func (e *Encoder) Sum() UID {
	return Keccak256(e.buf)
}
