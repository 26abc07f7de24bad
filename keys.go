package datalake

import (
	"encoding/binary"
	"math"
	"time"
)

// rowKey builds the canonical byte encoding used by Row.Key. Every value is
// prefixed with a tag byte so that adjacent values can't be confused and a
// null never equals an empty string.
type rowKey []byte

const (
	tagNull byte = iota
	tagString
	tagInt
	tagFloat
	tagTime
)

func (k rowKey) str(s string) rowKey {
	k = append(k, tagString)
	k = binary.AppendUvarint(k, uint64(len(s)))
	return append(k, s...)
}

func (k rowKey) optStr(s *string) rowKey {
	if s == nil {
		return append(k, tagNull)
	}
	return k.str(*s)
}

func (k rowKey) int(i int64) rowKey {
	k = append(k, tagInt)
	return binary.AppendVarint(k, i)
}

func (k rowKey) float(f float64) rowKey {
	if f == 0 {
		f = 0 // folds -0 into 0
	}
	k = append(k, tagFloat)
	return binary.BigEndian.AppendUint64(k, math.Float64bits(f))
}

func (k rowKey) optFloat(f *float64) rowKey {
	if f == nil {
		return append(k, tagNull)
	}
	return k.float(*f)
}

func (k rowKey) time(t time.Time) rowKey {
	k = append(k, tagTime)
	return binary.AppendVarint(k, t.UnixNano())
}
