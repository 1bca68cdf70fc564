package record

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"xdao.co/attest/errs"
	"xdao.co/attest/uid"
)

// CodecVersion is the first byte of every encoded attestation record.
const CodecVersion uint8 = 1

// Encode produces the canonical archive bytes of an attestation record.
//
// Layout:
//
//	1 byte    version
//	32 bytes  uid
//	32 bytes  schema
//	8 bytes   time (big-endian)
//	8 bytes   expiration time
//	8 bytes   revocation time
//	32 bytes  ref uid
//	20 bytes  recipient
//	20 bytes  attester
//	1 byte    revocable
//	4 + n     data (length-prefixed, big-endian)
//	4 + m     value (length-prefixed big-endian magnitude)
func Encode(a Attestation) []byte {
	value := ValueOrZero(a.Value).Bytes()

	buf := make([]byte, 0, 1+32+32+8*3+32+20+20+1+4+len(a.Data)+4+len(value))
	buf = append(buf, CodecVersion)
	buf = append(buf, a.UID[:]...)
	buf = append(buf, a.Schema[:]...)
	buf = binary.BigEndian.AppendUint64(buf, a.Time)
	buf = binary.BigEndian.AppendUint64(buf, a.ExpirationTime)
	buf = binary.BigEndian.AppendUint64(buf, a.RevocationTime)
	buf = append(buf, a.RefUID[:]...)
	buf = append(buf, a.Recipient.Bytes()...)
	buf = append(buf, a.Attester.Bytes()...)
	if a.Revocable {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(a.Data)))
	buf = append(buf, a.Data...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(value)))
	buf = append(buf, value...)
	return buf
}

// Decode parses bytes produced by Encode. Every read is bounds-checked:
// a short buffer fails with an OutOfBounds error rather than yielding
// zero-filled fields.
func Decode(b []byte) (Attestation, error) {
	r := reader{b: b}
	var a Attestation

	version, err := r.next(1, "version")
	if err != nil {
		return a, err
	}
	if version[0] != CodecVersion {
		return a, errs.New(errs.KindInvalidAttestation, "REC-CODEC-002", fmt.Sprintf("unsupported record version %d", version[0]))
	}

	if a.UID, err = r.uid("uid"); err != nil {
		return a, err
	}
	if a.Schema, err = r.uid("schema"); err != nil {
		return a, err
	}
	if a.Time, err = r.uint64("time"); err != nil {
		return a, err
	}
	if a.ExpirationTime, err = r.uint64("expiration time"); err != nil {
		return a, err
	}
	if a.RevocationTime, err = r.uint64("revocation time"); err != nil {
		return a, err
	}
	if a.RefUID, err = r.uid("ref uid"); err != nil {
		return a, err
	}
	if a.Recipient, err = r.address("recipient"); err != nil {
		return a, err
	}
	if a.Attester, err = r.address("attester"); err != nil {
		return a, err
	}
	flag, err := r.next(1, "revocable")
	if err != nil {
		return a, err
	}
	switch flag[0] {
	case 0:
	case 1:
		a.Revocable = true
	default:
		return a, errs.New(errs.KindInvalidAttestation, "REC-CODEC-003", "revocable flag must be 0 or 1")
	}
	data, err := r.blob("data")
	if err != nil {
		return a, err
	}
	a.Data = data
	value, err := r.blob("value")
	if err != nil {
		return a, err
	}
	a.Value = new(big.Int).SetBytes(value)

	if r.pos != len(b) {
		return a, errs.New(errs.KindInvalidAttestation, "REC-CODEC-004", fmt.Sprintf("record has %d trailing bytes", len(b)-r.pos))
	}
	return a, nil
}

type reader struct {
	b   []byte
	pos int
}

func (r *reader) next(n int, field string) ([]byte, error) {
	if n < 0 || len(r.b)-r.pos < n {
		return nil, errs.New(errs.KindOutOfBounds, "REC-CODEC-001",
			fmt.Sprintf("%s: need %d bytes at offset %d, have %d", field, n, r.pos, len(r.b)-r.pos))
	}
	out := r.b[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *reader) uid(field string) (uid.UID, error) {
	b, err := r.next(uid.Size, field)
	if err != nil {
		return uid.Zero, err
	}
	return uid.FromBytes(b)
}

func (r *reader) address(field string) (common.Address, error) {
	b, err := r.next(common.AddressLength, field)
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(b), nil
}

func (r *reader) uint64(field string) (uint64, error) {
	b, err := r.next(8, field)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *reader) blob(field string) ([]byte, error) {
	lenBytes, err := r.next(4, field+" length")
	if err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBytes)
	if uint64(n) > uint64(len(r.b)-r.pos) {
		return nil, errs.New(errs.KindOutOfBounds, "REC-CODEC-001",
			fmt.Sprintf("%s: declared length %d exceeds remaining %d bytes", field, n, len(r.b)-r.pos))
	}
	b, err := r.next(int(n), field)
	if err != nil {
		return nil, err
	}
	return bytes.Clone(b), nil
}
