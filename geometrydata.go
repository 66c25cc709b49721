package geopackage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
)

// GeoPackage binary header layout:
//
//	magic    2 bytes  "GP"
//	version  1 byte   0
//	flags    1 byte   bit 0 byte order, bits 1-3 envelope type, bit 4 empty
//	srs_id   4 bytes  int32 in the flagged byte order
//	envelope 0, 32, 48 or 64 bytes of float64 min/max pairs
//	payload  standard WKB, absent for empty geometries
const (
	geometryMagic0    = 'G'
	geometryMagic1    = 'P'
	geometryVersion   = 0
	geometryHeaderLen = 8

	flagByteOrder    = 0x01
	flagEnvelopeMask = 0x0e
	flagEmpty        = 0x10
)

// ByteOrder is the order of the multi-byte header fields.
type ByteOrder uint8

const (
	BigEndian    ByteOrder = 0
	LittleEndian ByteOrder = 1
)

type byteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

func (o ByteOrder) order() byteOrder {
	if o == LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// EnvelopeType is the envelope indicator stored in the flags byte.
type EnvelopeType uint8

const (
	EnvelopeNone EnvelopeType = iota
	EnvelopeXY
	EnvelopeXYZ
	EnvelopeXYM
	EnvelopeXYZM
)

// Len returns the encoded envelope length in bytes.
func (t EnvelopeType) Len() int {
	switch t {
	case EnvelopeXY:
		return 32
	case EnvelopeXYZ, EnvelopeXYM:
		return 48
	case EnvelopeXYZM:
		return 64
	default:
		return 0
	}
}

// Envelope is the cached extent of a geometry.
type Envelope struct {
	MinX, MaxX float64
	MinY, MaxY float64
	HasZ       bool
	MinZ, MaxZ float64
	HasM       bool
	MinM, MaxM float64
}

// Type returns the envelope indicator matching the populated ranges.
func (e *Envelope) Type() EnvelopeType {
	switch {
	case e == nil:
		return EnvelopeNone
	case e.HasZ && e.HasM:
		return EnvelopeXYZM
	case e.HasZ:
		return EnvelopeXYZ
	case e.HasM:
		return EnvelopeXYM
	default:
		return EnvelopeXY
	}
}

// BoundingBox drops the z and m ranges.
func (e *Envelope) BoundingBox() BoundingBox {
	return NewBoundingBox(e.MinX, e.MaxX, e.MinY, e.MaxY)
}

func envelopeFromBound(b orb.Bound) *Envelope {
	return &Envelope{MinX: b.Min[0], MaxX: b.Max[0], MinY: b.Min[1], MaxY: b.Max[1]}
}

// GeometryData is a geometry value in the container's binary encoding:
// header fields plus the raw WKB payload.
type GeometryData struct {
	SRSID     int32
	ByteOrder ByteOrder
	Envelope  *Envelope
	Empty     bool
	WKB       []byte
}

// NewGeometryData encodes g as little-endian WKB. A nil geometry yields an
// empty value.
func NewGeometryData(srsID int32, g orb.Geometry) (*GeometryData, error) {
	if g == nil {
		return EmptyGeometryData(srsID), nil
	}
	payload, err := wkb.Marshal(g, binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("%w: wkb: %v", ErrType, err)
	}
	return &GeometryData{SRSID: srsID, ByteOrder: LittleEndian, WKB: payload}, nil
}

// EmptyGeometryData returns an empty geometry in the given SRS.
func EmptyGeometryData(srsID int32) *GeometryData {
	return &GeometryData{SRSID: srsID, ByteOrder: LittleEndian, Empty: true}
}

// Geometry parses the WKB payload. Empty values return a nil geometry.
func (d *GeometryData) Geometry() (orb.Geometry, error) {
	if d.Empty {
		return nil, nil
	}
	g, err := wkb.Unmarshal(d.WKB)
	if err != nil {
		return nil, dataErrf(d.WKB, 0, "wkb: %v", err)
	}
	return g, nil
}

// ComputeEnvelope sets the XY envelope from the payload coordinates. Empty
// geometries get no envelope.
func (d *GeometryData) ComputeEnvelope() error {
	if d.Empty {
		d.Envelope = nil
		return nil
	}
	g, err := d.Geometry()
	if err != nil {
		return err
	}
	d.Envelope = envelopeFromBound(g.Bound())
	return nil
}

// Equal reports whether both values encode to the same bytes.
func (d *GeometryData) Equal(o *GeometryData) bool {
	if d == nil || o == nil {
		return d == o
	}
	a, errA := d.MarshalBinary()
	b, errB := o.MarshalBinary()
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

// MarshalBinary encodes the header, envelope and payload.
func (d *GeometryData) MarshalBinary() ([]byte, error) {
	if d.Empty && len(d.WKB) > 0 {
		return nil, fmt.Errorf("%w: empty geometry carries a payload", ErrFormat)
	}
	if !d.Empty && len(d.WKB) == 0 {
		return nil, fmt.Errorf("%w: missing payload for non-empty geometry", ErrFormat)
	}
	env := d.Envelope
	if d.Empty {
		env = nil
	}
	et := env.Type()

	flags := byte(et) << 1
	if d.ByteOrder == LittleEndian {
		flags |= flagByteOrder
	}
	if d.Empty {
		flags |= flagEmpty
	}

	order := d.ByteOrder.order()
	buf := make([]byte, geometryHeaderLen, geometryHeaderLen+et.Len()+len(d.WKB))
	buf[0], buf[1], buf[2], buf[3] = geometryMagic0, geometryMagic1, geometryVersion, flags
	order.PutUint32(buf[4:8], uint32(d.SRSID))

	if env != nil {
		buf = appendFloats(buf, order, env.MinX, env.MaxX, env.MinY, env.MaxY)
		if env.HasZ {
			buf = appendFloats(buf, order, env.MinZ, env.MaxZ)
		}
		if env.HasM {
			buf = appendFloats(buf, order, env.MinM, env.MaxM)
		}
	}
	return append(buf, d.WKB...), nil
}

// UnmarshalBinary decodes data into d. Every malformation is a *DataError.
func (d *GeometryData) UnmarshalBinary(data []byte) error {
	if len(data) < geometryHeaderLen {
		return dataErrf(data, 0, "header needs %d bytes, have %d", geometryHeaderLen, len(data))
	}
	if data[0] != geometryMagic0 || data[1] != geometryMagic1 {
		return dataErrf(data, 0, "bad magic %q", data[:2])
	}
	if data[2] != geometryVersion {
		return dataErrf(data, 2, "unsupported version %d", data[2])
	}
	flags := data[3]
	et := EnvelopeType((flags & flagEnvelopeMask) >> 1)
	if et > EnvelopeXYZM {
		return dataErrf(data, 3, "invalid envelope indicator %d", et)
	}
	bo := BigEndian
	if flags&flagByteOrder != 0 {
		bo = LittleEndian
	}
	order := bo.order()
	empty := flags&flagEmpty != 0

	off := geometryHeaderLen
	if n := et.Len(); n > len(data)-off {
		return dataErrf(data, off, "%d-byte envelope exceeds remaining %d bytes", n, len(data)-off)
	}

	out := GeometryData{
		SRSID:     int32(order.Uint32(data[4:8])),
		ByteOrder: bo,
		Empty:     empty,
	}
	if et != EnvelopeNone {
		f := readFloats(data[off:off+et.Len()], order)
		env := &Envelope{MinX: f[0], MaxX: f[1], MinY: f[2], MaxY: f[3]}
		switch et {
		case EnvelopeXYZ:
			env.HasZ, env.MinZ, env.MaxZ = true, f[4], f[5]
		case EnvelopeXYM:
			env.HasM, env.MinM, env.MaxM = true, f[4], f[5]
		case EnvelopeXYZM:
			env.HasZ, env.MinZ, env.MaxZ = true, f[4], f[5]
			env.HasM, env.MinM, env.MaxM = true, f[6], f[7]
		}
		if !empty {
			out.Envelope = env
		}
		off += et.Len()
	}

	if !empty {
		if off == len(data) {
			return dataErrf(data, off, "missing payload for non-empty geometry")
		}
		out.WKB = bytes.Clone(data[off:])
	}
	*d = out
	return nil
}

// EncodeGeometryData is MarshalBinary as a function.
func EncodeGeometryData(d *GeometryData) ([]byte, error) {
	return d.MarshalBinary()
}

// DecodeGeometryData parses a binary geometry blob.
func DecodeGeometryData(data []byte) (*GeometryData, error) {
	d := new(GeometryData)
	if err := d.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return d, nil
}

func appendFloats(buf []byte, order byteOrder, vals ...float64) []byte {
	for _, v := range vals {
		buf = order.AppendUint64(buf, math.Float64bits(v))
	}
	return buf
}

func readFloats(b []byte, order byteOrder) []float64 {
	out := make([]float64, len(b)/8)
	for i := range out {
		out[i] = math.Float64frombits(order.Uint64(b[i*8:]))
	}
	return out
}
