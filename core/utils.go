package core

import "strings"

// CleanString trims s and collapses its inner runs of whitespace to single spaces.
func CleanString(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ParseOrdering reads a comma-separated list of fields, each descending when prefixed with "-":
// "-created_at,id". Blank entries are skipped.
func ParseOrdering(s string) []DBOrdering {
	var ordering []DBOrdering
	for _, field := range strings.Split(s, ",") {
		if field = strings.TrimSpace(field); field == "" || field == "-" {
			continue
		}
		ordering = append(ordering, DBOrdering{
			Field:     strings.TrimPrefix(field, "-"),
			Ascending: !strings.HasPrefix(field, "-"),
		})
	}
	return ordering
}
