package dotlite

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecord_encodeDecodeRoundTrip(t *testing.T) {
	var values = []any{
		nil,
		int64(0),
		int64(1),
		int64(-1),
		int64(127),
		int64(128),
		int64(1 << 40),
		float64(3.5),
		"hello",
		[]byte{0x01, 0x02, 0x03},
	}

	var payload, err = EncodeRecord(values)
	require.NoError(t, err)

	var decoded []any
	decoded, err = DecodeRecord(payload)
	require.NoError(t, err)
	require.Equal(t, values, decoded)
}

func TestRecord_zeroAndOneUseDedicatedSerialTypes(t *testing.T) {
	var payload, err = EncodeRecord([]any{int64(0), int64(1)})
	require.NoError(t, err)

	// header-length byte + two single-byte serial-type codes, no body bytes
	require.Equal(t, 3, len(payload))
}

func TestRecord_reservedSerialTypeIsRejected(t *testing.T) {
	// header length=2, one serial-type byte holding the reserved code 10
	var _, err = DecodeRecord([]byte{2, 10})
	require.ErrorIs(t, err, ErrMalformedRecord)
}

func TestRecord_textTrimsEmbeddedNul(t *testing.T) {
	var payload, err = EncodeRecord([]any{"ab\x00cd"})
	require.NoError(t, err)

	var rec *Record
	rec, err = NewRecord(UTF8, payload)
	require.NoError(t, err)

	var s string
	s, err = rec.AsString(0)
	require.NoError(t, err)
	require.Equal(t, "ab", s)
}

func TestRecord_uintRoundTripsAsInt64(t *testing.T) {
	var payload, err = EncodeRecord([]any{uint64(42), uint(7)})
	require.NoError(t, err)

	var decoded []any
	decoded, err = DecodeRecord(payload)
	require.NoError(t, err)
	require.Equal(t, []any{int64(42), int64(7)}, decoded)
}

func TestRecord_uintOverflowIsRejected(t *testing.T) {
	var _, err = EncodeRecord([]any{uint64(math.MaxInt64) + 1})
	require.ErrorIs(t, err, ErrValueOverflow)
}

func TestRecord_accessorsCoerceNumericTypes(t *testing.T) {
	var payload, err = EncodeRecord([]any{float64(4.0), int64(9)})
	require.NoError(t, err)

	var rec *Record
	rec, err = NewRecord(UTF8, payload)
	require.NoError(t, err)

	var asInt int64
	asInt, err = rec.AsInt64(0)
	require.NoError(t, err)
	require.Equal(t, int64(4), asInt)

	var asFloat float64
	asFloat, err = rec.AsFloat64(1)
	require.NoError(t, err)
	require.Equal(t, float64(0), asFloat, "a non-float column coerces to the type's zero value, not a cast")
}
