package gate

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxPromptLength is the hard ceiling on free-text input in characters.
// It is enforced before any other processing: longer input is cut, never
// scanned or classified in full.
const MaxPromptLength = 200

// Pre-compiled injection heuristics. The set is fixed; anything it misses
// is the classifier's problem, anything it catches never reaches the
// classifier at all.
var (
	// reOverride matches instruction-override phrasing such as
	// "ignore all previous instructions" in its common spellings.
	reOverride = regexp.MustCompile(`(?i)\b(ignore|disregard|forget|override)\b[^.?!]{0,40}\b(previous|prior|above|earlier|all|any|system)\b[^.?!]{0,40}\b(instruction|prompt|rule|message|context|direction)s?\b`)

	// rePseudoTag matches delimiter-spoofing markers: bracketed
	// pseudo-system tags and chat-template control tokens.
	rePseudoTag = regexp.MustCompile(`(?i)(\[\s*/?\s*(system|assistant|user|inst)\s*\]|<\|[a-z_|]+\|>|<<\s*/?\s*sys\s*>>|\{\{\s*[a-z_]+\s*\}\})`)

	// reMarkup matches raw HTML/script payloads that have no place in a
	// disruption report.
	reMarkup = regexp.MustCompile(`(?i)(<\s*/?\s*(script|iframe|style|svg|img|object|embed)\b|javascript\s*:|\bon(load|error|click|mouseover)\s*=)`)

	// reSQL matches SQL-shaped payloads.
	reSQL = regexp.MustCompile(`(?i)(\b(drop|truncate|alter)\s+(table|database)\b|\bunion\s+select\b|\binsert\s+into\b|\bdelete\s+from\b|;\s*--|'\s*(or|and)\s+'?\d+'?\s*=\s*'?\d+)`)
)

// Truncate bounds raw input to MaxPromptLength characters, rune-safe so a
// multi-byte character is never split.
func Truncate(input string) string {
	if utf8.RuneCountInString(input) <= MaxPromptLength {
		return input
	}
	runes := []rune(input)
	return string(runes[:MaxPromptLength])
}

// stripControlChars removes ASCII control characters (0x00-0x1F) and DEL
// (0x7F), except for newline and tab which are preserved.
func stripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r < 0x20 || r == 0x7F) && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// injectionMatch returns the name of the first heuristic the text trips,
// or "" when the text is clean. The name goes to logs and metrics only;
// callers see an ordinary low-confidence result, not which tripwire fired.
func injectionMatch(s string) string {
	switch {
	case reOverride.MatchString(s):
		return "instruction_override"
	case rePseudoTag.MatchString(s):
		return "pseudo_system_tag"
	case reMarkup.MatchString(s):
		return "markup_payload"
	case reSQL.MatchString(s):
		return "sql_payload"
	}
	return ""
}
