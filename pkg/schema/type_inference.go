package schema

import "strings"

const (
	groupSeparator = "__"
	slotSeparator  = "_"
)

// inferenceRule is one step of the ordered name heuristic. Exact rules
// compare against the field root, substring rules against the cleaned name.
type inferenceRule struct {
	name  string
	typ   ColumnType
	match func(cleaned, root string) bool
}

func exact(words ...string) func(cleaned, root string) bool {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return func(_, root string) bool {
		_, ok := set[root]
		return ok
	}
}

func contains(words ...string) func(cleaned, root string) bool {
	return func(cleaned, _ string) bool {
		for _, w := range words {
			if strings.Contains(cleaned, w) {
				return true
			}
		}
		return false
	}
}

func suffix(words ...string) func(cleaned, root string) bool {
	return func(_, root string) bool {
		for _, w := range words {
			if strings.HasSuffix(root, w) {
				return true
			}
		}
		return false
	}
}

var (
	containsChakuKaisu = contains("ChakuKaisu", "Chakukaisu")
	hasCodeSuffix      = suffix("CD", "Cd", "Code")
)

// Order matters: monetary substrings are checked before the flag vocabulary,
// so a name carrying both resolves as Integer.
var inferenceRules = []inferenceRule{
	{"finish-count", Integer, func(cleaned, root string) bool {
		return root == "ChakuKaisu" || containsChakuKaisu(cleaned, root)
	}},
	{"count", Integer, exact(
		"Tosu", "TorokuTosu", "SyussoTosu", "NyusenTosu", "DochakuTosu", "KaisaiTosu",
		"Count", "Kaisu", "Umaban", "Wakuban", "Kaiji", "Nichiji", "RaceNum", "Barei", "Num",
	)},
	{"calendar", Integer, exact("Year", "Month", "Day", "Hour", "Minute", "Second")},
	{"position", Integer, exact(
		"Jyuni", "KakuteiJyuni", "NyusenJyuni", "Chakujun", "DMJyuni",
		"Jyuni1c", "Jyuni2c", "Jyuni3c", "Jyuni4c", "ShutsubaTohyoJun",
	)},
	{"monetary", Integer, contains("Pay", "Syokin", "syokin", "Odds", "Kingaku", "Haito", "Hyosu", "hyosu")},
	{"distance-time", Integer, exact(
		"Kyori", "KyoriBefore", "Time", "TimeDiff", "HaronTime", "HaronTimeL3", "HaronTimeL4",
		"LapTime", "F4Time", "DMTime", "DMGosaP", "DMGosaM",
	)},
	{"weight", Integer, exact("Futan", "FutanBefore", "BaTaijyu", "Taijyu", "Kinryo")},
	{"rank-margin", Integer, exact("Ninki", "ZogenSa", "TMScore", "Score")},
	{"flag", Text, contains("Flag", "Kubun", "Mark", "Kigo", "FLG")},
	{"code", Text, func(cleaned, root string) bool {
		return root == "CD" || root == "Code" || hasCodeSuffix(cleaned, root)
	}},
	{"set-year", Integer, exact("SetYear")},
}

// InferType returns the column type implied by a field name alone. It is
// total and deterministic; names no rule recognises are Text.
func InferType(field string) ColumnType {
	typ, _ := ExplainType(field)
	return typ
}

// ExplainType is InferType that also names the rule that decided, or
// "default" when none matched.
func ExplainType(field string) (ColumnType, string) {
	cleaned, root := splitFieldName(field)
	for _, rule := range inferenceRules {
		if rule.match(cleaned, root) {
			return rule.typ, rule.name
		}
	}
	return Text, "default"
}

// splitFieldName drops repeated-group prefixes ("HonRuikei_1__") and returns
// the remaining name plus its semantic root, skipping a trailing slot index
// such as the "3" in "ChakuKaisu_3".
func splitFieldName(field string) (cleaned, root string) {
	cleaned = field
	if i := strings.LastIndex(cleaned, groupSeparator); i >= 0 {
		cleaned = cleaned[i+len(groupSeparator):]
	}

	segments := strings.Split(cleaned, slotSeparator)
	root = segments[len(segments)-1]
	if len(segments) > 1 && isDigits(root) {
		root = segments[len(segments)-2]
	}
	return cleaned, root
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
