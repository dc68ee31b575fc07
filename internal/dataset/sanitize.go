package dataset

import "strings"

// SanitizeProdTypeLabel cleans up a raw production-type label from the
// installed-capacity files so it matches the taxonomy's raw type names.
// Very ad-hoc: dash separators and parentheticals vary across editions.
func SanitizeProdTypeLabel(label string) string {
	s := strings.ToLower(strings.TrimSpace(label))
	s = strings.ReplaceAll(s, " - ", " ")
	s = strings.ReplaceAll(s, "(", "")
	s = strings.ReplaceAll(s, ")", "")
	s = strings.Join(strings.Fields(s), "_")
	s = strings.ReplaceAll(s, "gas_", "gas")
	return s
}

// aggTypeOfRaw finds the aggregate production type a raw label belongs to in
// a {aggregate type: raw types} correspondence, or "" when unmapped.
func aggTypeOfRaw(raw string, corresp map[string][]string) string {
	for aggType, rawTypes := range corresp {
		for _, r := range rawTypes {
			if r == raw {
				return aggType
			}
		}
	}
	return ""
}
