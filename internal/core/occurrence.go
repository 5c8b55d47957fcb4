package core

import (
	"fmt"
	"strconv"
	"strings"
)

const occurrencePrefix = "fc-"

// OccurrenceID builds the deterministic id of the occurrence a template emits
// for a given month. The same (template, year, month) always maps to the same
// id, so selection survives recomputation and duplicates collapse naturally.
func OccurrenceID(templateID string, year, month int) string {
	return fmt.Sprintf("%s%s-%d-%d", occurrencePrefix, templateID, year, month)
}

// ParseOccurrenceID extracts the template id from an occurrence id. The second
// return value is false for ids that are not occurrence ids, including plain
// row ids, which lets callers route deletes without a separate lookup.
func ParseOccurrenceID(id string) (templateID string, ok bool) {
	if !strings.HasPrefix(id, occurrencePrefix) {
		return "", false
	}
	rest := id[len(occurrencePrefix):]
	// Template ids may themselves contain dashes; year and month are the last
	// two segments.
	i := strings.LastIndexByte(rest, '-')
	if i <= 0 {
		return "", false
	}
	j := strings.LastIndexByte(rest[:i], '-')
	if j <= 0 {
		return "", false
	}
	if _, err := strconv.Atoi(rest[j+1 : i]); err != nil {
		return "", false
	}
	if _, err := strconv.Atoi(rest[i+1:]); err != nil {
		return "", false
	}
	return rest[:j], true
}
