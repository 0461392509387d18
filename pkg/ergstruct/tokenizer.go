package ergstruct

import (
	"regexp"
	"strings"
)

// Assignment is one `key = value` line of an info file.
type Assignment struct {
	Line  int // 1-based
	Key   string
	Value string
}

var (
	// assignmentPattern splits a line at the first '='. The key may be
	// wrapped in double quotes.
	assignmentPattern = regexp.MustCompile(`^[ \t]*"?(?P<key>[^"=]+?)"?[ \t]*=[ \t]*(?P<value>.*?)[ \t]*$`)
	keyGroup          = assignmentPattern.SubexpIndex("key")
	valueGroup        = assignmentPattern.SubexpIndex("value")
)

// Tokenize splits info text into assignments in file order. Blank lines,
// '#' comments and lines without '=' (such as continuation lines of
// multi-line values) are skipped.
func Tokenize(text string) []Assignment {
	lines := strings.Split(text, "\n")
	out := make([]Assignment, 0, len(lines))
	for i, line := range lines {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		m := assignmentPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key := strings.TrimSpace(m[keyGroup])
		if key == "" {
			continue
		}
		out = append(out, Assignment{
			Line:  i + 1,
			Key:   key,
			Value: m[valueGroup],
		})
	}
	return out
}
