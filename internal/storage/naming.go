package storage

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
)

// maxIdentLen keeps generated names under the 63-byte Postgres limit.
const maxIdentLen = 60

// IndexName returns the deterministic unique-index name for keys on
// schema.table: ux_{schema}_{table}_{cols}, or ux_{schema}_{table}_{hash8}
// when the natural name is too long.
func IndexName(schema, table string, keys []string) string {
	prefix := "ux_" + identPart(schema) + "_" + identPart(table)
	cols := make([]string, len(keys))
	for i, k := range keys {
		cols[i] = identPart(k)
	}
	natural := prefix + "_" + strings.Join(cols, "_")
	if len(natural) <= maxIdentLen {
		return natural
	}
	hashed := prefix + "_" + shortHash(natural, 8)
	if len(hashed) <= maxIdentLen {
		return hashed
	}
	return "ux_" + shortHash(natural, 16)
}

// StagingName returns a per-call staging table name _tmp_{table}_{token}.
func StagingName(table string) string {
	t := identPart(table)
	if len(t) > 40 {
		t = t[:40]
	}
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return "_tmp_" + t + "_" + token
}

func shortHash(s string, n int) string {
	return fmt.Sprintf("%016x", xxh3.HashString(s))[:n]
}

// identPart lowercases s and replaces anything outside [a-z0-9_] with '_'.
func identPart(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
