package vrf

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/er-state/vrf-consumer/types"
)

// encoder writes the fixed little-endian layout used by oracle instructions
// and queue records: fixed arrays verbatim, vectors as u32 length || items.
type encoder struct {
	buf bytes.Buffer
}

func (e *encoder) raw(b []byte) {
	e.buf.Write(b)
}

func (e *encoder) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
}

func (e *encoder) pubkey(pk types.Pubkey) {
	e.buf.Write(pk[:])
}

func (e *encoder) vec(b []byte) {
	e.u32(uint32(len(b)))
	e.buf.Write(b)
}

func (e *encoder) metas(metas []types.AccountMeta) {
	e.u32(uint32(len(metas)))
	for _, m := range metas {
		e.pubkey(m.Pubkey)
		e.buf.WriteByte(boolByte(m.IsSigner))
		e.buf.WriteByte(boolByte(m.IsWritable))
	}
}

func (e *encoder) bytes() []byte {
	return e.buf.Bytes()
}

// decoder reads what encoder wrote. The first error sticks; later reads
// return zero values.
type decoder struct {
	b   []byte
	off int
	err error
}

func newDecoder(b []byte) *decoder {
	return &decoder{b: b}
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || d.off+n > len(d.b) {
		d.err = fmt.Errorf("unexpected end of data: need %d bytes at offset %d, have %d", n, d.off, len(d.b)-d.off)

		return nil
	}
	out := d.b[d.off : d.off+n]
	d.off += n

	return out
}

func (d *decoder) u32() uint32 {
	b := d.take(4)
	if b == nil {
		return 0
	}

	return binary.LittleEndian.Uint32(b)
}

func (d *decoder) pubkey() types.Pubkey {
	var pk types.Pubkey
	copy(pk[:], d.take(types.PubkeyLength))

	return pk
}

func (d *decoder) array32() [32]byte {
	var out [32]byte
	copy(out[:], d.take(32))

	return out
}

func (d *decoder) vec() []byte {
	n := d.u32()
	b := d.take(int(n))
	if b == nil {
		return nil
	}

	return bytes.Clone(b)
}

func (d *decoder) metas() []types.AccountMeta {
	n := d.u32()
	if d.err != nil {
		return nil
	}
	// each meta is 34 bytes; reject counts the data cannot hold
	if int(n) > (len(d.b)-d.off)/(types.PubkeyLength+2) {
		d.err = fmt.Errorf("account meta count %d exceeds remaining data", n)

		return nil
	}

	metas := make([]types.AccountMeta, 0, n)
	for i := uint32(0); i < n; i++ {
		pk := d.pubkey()
		flags := d.take(2)
		if flags == nil {
			return nil
		}
		metas = append(metas, types.NewAccountMeta(pk, flags[0] != 0, flags[1] != 0))
	}

	return metas
}

// finish fails if decoding failed or bytes are left over.
func (d *decoder) finish() error {
	if d.err != nil {
		return d.err
	}
	if d.off != len(d.b) {
		return fmt.Errorf("%d trailing bytes", len(d.b)-d.off)
	}

	return nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}

	return 0
}
