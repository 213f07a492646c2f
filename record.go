package dotlite

import (
	"encoding/binary"
	"math"
	"strings"
)

// serial type codes; see https://www.sqlite.org/fileformat.html#record_format
const (
	serialNull    = 0
	serialInt8    = 1
	serialInt16   = 2
	serialInt24   = 3
	serialInt32   = 4
	serialInt48   = 5
	serialInt64   = 6
	serialFloat64 = 7
	serialZero    = 8
	serialOne     = 9
	// 10, 11 are reserved/invalid
)

// DecodeRecord decodes a single record payload (header-length varint,
// followed by that many bytes of serial-type varints, followed by the
// concatenated field bodies) into an ordered list of Go values. Decoded
// values use the same dynamic typing Record's accessors expose: nil,
// int64, float64, []byte or string.
func DecodeRecord(payload []byte) ([]any, error) {
	var headerLen, bodyStart, err = DecodeVarint(payload, 0)
	if err != nil {
		return nil, err
	}
	if int(headerLen) > len(payload) || headerLen < 1 {
		return nil, wrapf(ErrMalformedRecord, "header length %d exceeds payload of %d bytes", headerLen, len(payload))
	}

	var types []int64
	for i := bodyStart; i < int(headerLen); {
		var t, next, err = DecodeVarint(payload, i)
		if err != nil {
			return nil, err
		}
		if t == 10 || t == 11 {
			return nil, wrapf(ErrMalformedRecord, "reserved serial type %d", t)
		}
		types = append(types, t)
		i = next
	}

	var body = payload[headerLen:]
	var values = make([]any, len(types))
	for i, t := range types {
		var v any
		var n int
		var err error
		if v, n, err = decodeValue(t, body); err != nil {
			return nil, err
		}
		values[i] = v
		body = body[n:]
	}

	return values, nil
}

func typeSize(t int64) int64 {
	switch {
	case t >= 12 && t%2 == 0:
		return (t - 12) / 2
	case t >= 13 && t%2 != 0:
		return (t - 13) / 2
	}
	switch t {
	case serialNull, serialZero, serialOne:
		return 0
	case serialInt8:
		return 1
	case serialInt16:
		return 2
	case serialInt24:
		return 3
	case serialInt32:
		return 4
	case serialInt48:
		return 6
	case serialInt64, serialFloat64:
		return 8
	}
	return 0
}

func decodeValue(t int64, body []byte) (any, int, error) {
	var need = int(typeSize(t))
	if need > len(body) {
		return nil, 0, wrapf(ErrMalformedRecord, "truncated field of serial type %d", t)
	}

	switch t {
	case serialNull:
		return nil, 0, nil
	case serialInt8:
		return int64(int8(body[0])), 1, nil
	case serialInt16:
		return int64(int16(binary.BigEndian.Uint16(body))), 2, nil
	case serialInt24:
		var b = make([]byte, 4)
		copy(b[1:], body[:3])
		if b[1]&0x80 != 0 {
			b[0] = 0xff
		}
		return int64(int32(binary.BigEndian.Uint32(b))), 3, nil
	case serialInt32:
		return int64(int32(binary.BigEndian.Uint32(body))), 4, nil
	case serialInt48:
		var b = make([]byte, 8)
		copy(b[2:], body[:6])
		if b[2]&0x80 != 0 {
			b[0], b[1] = 0xff, 0xff
		}
		return int64(binary.BigEndian.Uint64(b)), 6, nil
	case serialInt64:
		return int64(binary.BigEndian.Uint64(body)), 8, nil
	case serialFloat64:
		return math.Float64frombits(binary.BigEndian.Uint64(body)), 8, nil
	case serialZero:
		return int64(0), 0, nil
	case serialOne:
		return int64(1), 0, nil
	}

	if t >= 12 && t%2 == 0 {
		var buf = make([]byte, need)
		copy(buf, body[:need])
		return buf, need, nil
	}
	if t >= 13 && t%2 != 0 {
		var s = string(body[:need])
		if idx := strings.IndexByte(s, 0); idx >= 0 {
			s = s[:idx]
		}
		return s, need, nil
	}

	return nil, 0, wrapf(ErrMalformedRecord, "unknown serial type %d", t)
}

// EncodeRecord encodes an ordered list of Go values into a record payload,
// choosing the smallest integer type code that contains each value (with 0
// and 1 using the dedicated single-byte codes) and always using the double
// code for floats.
func EncodeRecord(values []any) ([]byte, error) {
	var header []byte
	var body []byte

	for _, v := range values {
		var t int64
		var b []byte
		var err error
		if t, b, err = encodeValue(v); err != nil {
			return nil, err
		}
		header = append(header, EncodeVarint(t)...)
		body = append(body, b...)
	}

	// the header-length varint counts itself, so its own encoded width can
	// in principle push the total across a varint-length boundary; settle
	// to a fixed point in a handful of iterations.
	var headerLenField = EncodeVarint(int64(len(header) + 1))
	for i := 0; i < 4; i++ {
		var candidate = EncodeVarint(int64(len(header) + len(headerLenField)))
		var settled = len(candidate) == len(headerLenField)
		headerLenField = candidate
		if settled {
			break
		}
	}

	var out = make([]byte, 0, len(headerLenField)+len(header)+len(body))
	out = append(out, headerLenField...)
	out = append(out, header...)
	out = append(out, body...)
	return out, nil
}

func encodeValue(v any) (int64, []byte, error) {
	switch x := v.(type) {
	case nil:
		return serialNull, nil, nil
	case bool:
		if x {
			return serialOne, nil, nil
		}
		return serialZero, nil, nil
	case int:
		return encodeInt(int64(x))
	case int32:
		return encodeInt(int64(x))
	case int64:
		return encodeInt(x)
	case uint:
		return encodeUint(uint64(x))
	case uint32:
		return encodeInt(int64(x))
	case uint64:
		return encodeUint(x)
	case float32:
		return encodeFloat(float64(x))
	case float64:
		return encodeFloat(x)
	case []byte:
		return int64(12 + len(x)*2), x, nil
	case string:
		var b = []byte(x)
		return int64(13 + len(b)*2), b, nil
	default:
		return 0, nil, wrapf(ErrMalformedRecord, "unsupported field type %T", v)
	}
}

func encodeFloat(f float64) (int64, []byte, error) {
	var b = make([]byte, 8)
	binary.BigEndian.PutUint64(b, math.Float64bits(f))
	return serialFloat64, b, nil
}

// encodeUint encodes an unsigned value through encodeInt, since SQLite's
// record format has no unsigned integer type; v must fit in the signed
// 64-bit range used on disk.
func encodeUint(v uint64) (int64, []byte, error) {
	if v > math.MaxInt64 {
		return 0, nil, wrapf(ErrValueOverflow, "value %d exceeds signed 64-bit range", v)
	}
	return encodeInt(int64(v))
}

func encodeInt(v int64) (int64, []byte, error) {
	switch {
	case v == 0:
		return serialZero, nil, nil
	case v == 1:
		return serialOne, nil, nil
	case v >= -1<<7 && v < 1<<7:
		return serialInt8, []byte{byte(v)}, nil
	case v >= -1<<15 && v < 1<<15:
		var b = make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(v))
		return serialInt16, b, nil
	case v >= -1<<23 && v < 1<<23:
		var b = make([]byte, 4)
		binary.BigEndian.PutUint32(b, uint32(v))
		return serialInt24, b[1:], nil
	case v >= -1<<31 && v < 1<<31:
		var b = make([]byte, 4)
		binary.BigEndian.PutUint32(b, uint32(v))
		return serialInt32, b, nil
	case v >= -1<<47 && v < 1<<47:
		var b = make([]byte, 8)
		binary.BigEndian.PutUint64(b, uint64(v))
		return serialInt48, b[2:], nil
	default:
		var b = make([]byte, 8)
		binary.BigEndian.PutUint64(b, uint64(v))
		return serialInt64, b, nil
	}
}
