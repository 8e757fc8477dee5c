package model

// EntityTypes is the fixed entity vocabulary the classifier was trained on.
// The order determines label ids and must not change.
var EntityTypes = []string{
	"COLLEGE_NAME",
	"COMPANY",
	"DEGREE",
	"DESIGNATION",
	"EMAIL",
	"LOCATION",
	"NAME",
	"SKILLS",
}

// Outside is the label for words that belong to no entity.
const Outside = "O"

var (
	labels   = buildLabels()
	labelIDs = buildLabelIDs(labels)
)

func buildLabels() []string {
	out := make([]string, 0, 1+2*len(EntityTypes))
	out = append(out, Outside)
	for _, t := range EntityTypes {
		out = append(out, "B-"+t)
	}
	for _, t := range EntityTypes {
		out = append(out, "I-"+t)
	}
	return out
}

func buildLabelIDs(ls []string) map[string]int {
	m := make(map[string]int, len(ls))
	for i, l := range ls {
		m[l] = i
	}
	return m
}

// Labels returns a copy of the label vocabulary in id order:
// O, then B- for every entity type, then I- for every entity type.
func Labels() []string {
	out := make([]string, len(labels))
	copy(out, labels)
	return out
}

// NumLabels is the size of the classifier output layer.
func NumLabels() int { return len(labels) }

// LabelName maps a class id to its label. Ids outside the vocabulary map to O.
func LabelName(id int) string {
	if id < 0 || id >= len(labels) {
		return Outside
	}
	return labels[id]
}

// LabelID maps a label to its class id.
func LabelID(name string) (int, bool) {
	id, ok := labelIDs[name]
	return id, ok
}
