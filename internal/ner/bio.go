package ner

import (
	"strings"

	"github.com/unais0397/Resume-NER-Parser-Backend/internal/model"
)

// Decode groups BIO-labeled words into raw entity spans per type, in document
// order. Words beyond len(labels) count as O.
//
// An I- label that does not continue an open span of the same type starts a
// new span, exactly as a B- label would. Dropping such orphan continuations
// would lose entities the model did find.
func Decode(words, labels []string) map[string][]string {
	out := make(map[string][]string)
	var curType string
	var cur []string

	closeSpan := func() {
		if curType != "" {
			out[curType] = append(out[curType], strings.Join(cur, " "))
		}
		curType, cur = "", nil
	}

	for i, word := range words {
		label := model.Outside
		if i < len(labels) {
			label = labels[i]
		}
		prefix, typ := splitLabel(label)
		switch {
		case prefix == "I" && curType == typ:
			cur = append(cur, word)
		case prefix == "B" || prefix == "I":
			closeSpan()
			curType, cur = typ, []string{word}
		default:
			closeSpan()
		}
	}
	closeSpan()
	return out
}

// splitLabel splits "B-SKILLS" into ("B", "SKILLS"). Anything that is not a
// well-formed B- or I- label yields an empty prefix.
func splitLabel(label string) (prefix, typ string) {
	p, t, ok := strings.Cut(label, "-")
	if !ok || t == "" || (p != "B" && p != "I") {
		return "", ""
	}
	return p, t
}
