package cache

import (
	"strconv"
	"strings"
)

// Key builds a normalized cache key from a query and its parameters. The query
// is lower-cased and whitespace-trimmed so "Chicken " and "chicken" collide;
// parameters keep otherwise-identical queries with different pagination or
// page sizes distinct.
func Key(query string, params ...int) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(strings.TrimSpace(query)))
	for _, p := range params {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(p))
	}
	return b.String()
}
