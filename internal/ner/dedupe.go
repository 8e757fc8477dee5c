package ner

import "strings"

// EntityMapping maps an entity type to its unique mentions in order of first
// occurrence. Types without mentions are absent.
type EntityMapping map[string][]string

// Dedupe cleans raw spans and removes case-insensitive repeats per type.
// The first occurrence decides the casing kept. Each span is trimmed and
// loses one trailing comma; spans that end up empty are dropped.
func Dedupe(raw map[string][]string) EntityMapping {
	out := make(EntityMapping, len(raw))
	for typ, spans := range raw {
		var accepted []string
		for _, s := range spans {
			s = strings.TrimSpace(s)
			s = strings.TrimSuffix(s, ",")
			if s == "" || containsFold(accepted, s) {
				continue
			}
			accepted = append(accepted, s)
		}
		if len(accepted) > 0 {
			out[typ] = accepted
		}
	}
	return out
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
