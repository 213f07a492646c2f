package dotlite

import "fmt"

// Record is a decoded view over a single row's payload, indexable by
// column position in storage order.
type Record struct {
	encoding TextEncoding
	values   []any
}

// NewRecord decodes payload (the fully-materialized cell payload, with any
// overflow chain already resolved) into a Record.
func NewRecord(enc TextEncoding, payload []byte) (*Record, error) {
	var values, err = DecodeRecord(payload)
	if err != nil {
		return nil, err
	}
	return &Record{encoding: enc, values: values}, nil
}

func (rec *Record) Encoding() TextEncoding { return rec.encoding }
func (rec *Record) NumValues() int         { return len(rec.values) }

func (rec *Record) ValueAt(c int) (any, error) {
	if c < 0 || c >= len(rec.values) {
		return nil, fmt.Errorf("dotlite: column index %d out of range", c)
	}
	return rec.values[c], nil
}

func (rec *Record) AsInt64(c int) (int64, error) {
	var v, err = rec.ValueAt(c)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	default:
		return 0, nil
	}
}

func (rec *Record) AsInt(c int) (int, error) {
	var v, err = rec.AsInt64(c)
	return int(v), err
}

func (rec *Record) AsFloat64(c int) (float64, error) {
	var v, err = rec.ValueAt(c)
	if err != nil {
		return 0, err
	}
	n, _ := v.(float64)
	return n, nil
}

func (rec *Record) AsString(c int) (string, error) {
	var v, err = rec.ValueAt(c)
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

func (rec *Record) AsBlob(c int) ([]byte, error) {
	var v, err = rec.ValueAt(c)
	if err != nil {
		return nil, err
	}
	b, _ := v.([]byte)
	return b, nil
}
