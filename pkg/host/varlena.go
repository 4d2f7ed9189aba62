package host

import (
	"encoding/binary"
	"fmt"
)

// Header sizes of variable-length values.
const (
	VarHdrSz      = 4
	VarHdrSzShort = 1
	// VarShortMax is the largest total size a 1-byte header can describe.
	VarShortMax = 0x7f
)

// Varlena is a host variable-length value: a length header followed by the
// payload. Both the 4-byte and the 1-byte (short) header forms are handled,
// little-endian layout. Compressed and out-of-line (TOAST) values must be
// detoasted by the host before they reach quack.
type Varlena struct {
	raw []byte
}

// NewVarlena copies data behind a 4-byte header.
func NewVarlena(data []byte) *Varlena {
	raw := make([]byte, VarHdrSz+len(data))
	binary.LittleEndian.PutUint32(raw, uint32(len(raw))<<2)
	copy(raw[VarHdrSz:], data)
	return &Varlena{raw: raw}
}

// NewShortVarlena copies data behind a 1-byte header. It fails when the value
// is too long for the short form.
func NewShortVarlena(data []byte) (*Varlena, error) {
	size := VarHdrSzShort + len(data)
	if size > VarShortMax {
		return nil, fmt.Errorf("value of %d bytes does not fit a short varlena header", len(data))
	}
	raw := make([]byte, size)
	raw[0] = byte(size<<1) | 0x01
	copy(raw[VarHdrSzShort:], data)
	return &Varlena{raw: raw}, nil
}

// VarlenaFromBytes wraps a raw varlena image (header included) without copying.
func VarlenaFromBytes(raw []byte) (*Varlena, error) {
	v := &Varlena{raw: raw}
	if _, _, err := v.layout(); err != nil {
		return nil, err
	}
	return v, nil
}

// Bytes returns the raw image, header included.
func (v *Varlena) Bytes() []byte { return v.raw }

// IsShort reports whether the value carries a 1-byte header.
func (v *Varlena) IsShort() bool {
	return len(v.raw) > 0 && v.raw[0]&0x01 == 0x01
}

// Data returns the payload without its header, sized by the header's
// logical length. Trailing bytes past that length are never included.
func (v *Varlena) Data() ([]byte, error) {
	hdr, size, err := v.layout()
	if err != nil {
		return nil, err
	}
	return v.raw[hdr:size], nil
}

// Len returns the payload length.
func (v *Varlena) Len() (int, error) {
	hdr, size, err := v.layout()
	if err != nil {
		return 0, err
	}
	return size - hdr, nil
}

func (v *Varlena) layout() (hdr, size int, err error) {
	if len(v.raw) == 0 {
		return 0, 0, fmt.Errorf("empty varlena")
	}

	first := v.raw[0]
	switch {
	case first == 0x01:
		return 0, 0, fmt.Errorf("external (toasted) varlena must be detoasted first")
	case first&0x01 == 0x01:
		hdr, size = VarHdrSzShort, int(first>>1)
	case first&0x03 == 0x02:
		return 0, 0, fmt.Errorf("compressed varlena must be decompressed first")
	default:
		if len(v.raw) < VarHdrSz {
			return 0, 0, fmt.Errorf("truncated varlena header: %d bytes", len(v.raw))
		}
		hdr, size = VarHdrSz, int(binary.LittleEndian.Uint32(v.raw)>>2)
	}

	if size < hdr || size > len(v.raw) {
		return 0, 0, fmt.Errorf("varlena size %d out of bounds (buffer %d bytes)", size, len(v.raw))
	}
	return hdr, size, nil
}
