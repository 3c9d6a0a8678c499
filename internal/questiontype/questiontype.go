// Package questiontype canonicalizes free-form question type labels coming
// from the model or from authored workflow conditions.
package questiontype

import (
	"strings"
	"unicode"
)

type Type string

const (
	MultipleChoice  Type = "multiple_choice"
	FillInTheBlanks Type = "fill_in_the_blanks"
	TrueFalse       Type = "true_false"
	Matching        Type = "matching"
	Ordering        Type = "ordering"
	ShortAnswer     Type = "short_answer"
	LongAnswer      Type = "long_answer"
)

var canonical = []Type{
	MultipleChoice,
	FillInTheBlanks,
	TrueFalse,
	Matching,
	Ordering,
	ShortAnswer,
	LongAnswer,
}

// aliases are matched exactly against the already-canonicalized form.
var aliases = map[string]Type{
	"mcq":             MultipleChoice,
	"multiplechoice":  MultipleChoice,
	"fillintheblanks": FillInTheBlanks,
	"fillinblank":     FillInTheBlanks,
	"fillintheblank":  FillInTheBlanks,
	"truefalse":       TrueFalse,
	"tf":              TrueFalse,
	"true_or_false":   TrueFalse,
	"shortanswer":     ShortAnswer,
	"short":           ShortAnswer,
	"longanswer":      LongAnswer,
	"long":            LongAnswer,
	"essay":           LongAnswer,
}

// All returns the canonical types in display order.
func All() []Type {
	return append([]Type(nil), canonical...)
}

func (t Type) Valid() bool {
	for _, c := range canonical {
		if t == c {
			return true
		}
	}
	return false
}

func (t Type) String() string {
	return string(t)
}

// Normalize maps raw onto a canonical type. The second result is false when
// raw is empty or cannot be mapped; no guessing is done beyond the alias table.
// Normalizing a canonical value returns it unchanged.
func Normalize(raw string) (Type, bool) {
	key := canonicalize(raw)
	if key == "" {
		return "", false
	}
	if t := Type(key); t.Valid() {
		return t, true
	}
	if t, ok := aliases[key]; ok {
		return t, true
	}
	return "", false
}

// Canonical is Normalize without the ok flag; unknown input yields "".
func Canonical(raw string) Type {
	t, _ := Normalize(raw)
	return t
}

// Equal reports whether a and b normalize to the same canonical type.
func Equal(a, b string) bool {
	ta, ok := Normalize(a)
	if !ok {
		return false
	}
	tb, ok := Normalize(b)
	if !ok {
		return false
	}
	return ta == tb
}

// canonicalize lower-cases raw, turns each slash or hyphen and each run of
// whitespace into an underscore and drops anything outside [a-z0-9_].
func canonicalize(raw string) string {
	lower := strings.ToLower(strings.TrimSpace(raw))
	var b strings.Builder
	b.Grow(len(lower))
	inSpace := false
	for _, r := range lower {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte('_')
			}
			inSpace = true
			continue
		}
		inSpace = false
		switch {
		case r == '/' || r == '\\' || r == '-':
			b.WriteByte('_')
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}
