package workflow

import "strings"

const (
	PlaceholderQuestion = "{question}"
	PlaceholderType     = "{type}"
	PlaceholderPrevious = "{previous}"
)

// Render substitutes the known placeholders of tmpl from ctx. Unknown
// placeholders are left untouched.
func Render(tmpl string, ctx Context) string {
	return strings.NewReplacer(
		PlaceholderQuestion, ctx.Text,
		PlaceholderType, ctx.Type,
		PlaceholderPrevious, ctx.Previous,
	).Replace(tmpl)
}
