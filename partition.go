package datalake

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
)

// DefaultPartition is the directory value used for null or empty partition
// values.
const DefaultPartition = "__HIVE_DEFAULT_PARTITION__"

// PartitionPath returns the slash separated "col=value/..." directory of rec
// for the given partition columns, or "" if there are none.
func PartitionPath(partitionBy []string, rec map[string]interface{}) string {
	if len(partitionBy) == 0 {
		return ""
	}
	segs := make([]string, len(partitionBy))
	for i, col := range partitionBy {
		segs[i] = escapePathName(col) + "=" + partitionValue(rec[col])
	}
	return path.Join(segs...)
}

func partitionValue(v interface{}) string {
	var s string
	switch v := v.(type) {
	case nil:
		return DefaultPartition
	case string:
		s = v
	case int32:
		s = strconv.FormatInt(int64(v), 10)
	case int64:
		s = strconv.FormatInt(v, 10)
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		s = v.Format("2006-01-02 15:04:05")
	default:
		s = fmt.Sprint(v)
	}
	if s == "" {
		return DefaultPartition
	}
	return escapePathName(s)
}

func escapePathName(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if needsEscape(c) {
			fmt.Fprintf(&b, "%%%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func needsEscape(c byte) bool {
	if c < 0x20 || c == 0x7F {
		return true
	}
	switch c {
	case '"', '#', '%', '\'', '*', '/', ':', '=', '?', '\\', '{', '[', ']', '^':
		return true
	}
	return false
}
