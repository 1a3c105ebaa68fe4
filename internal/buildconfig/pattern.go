package buildconfig

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultHashLength is the number of hash characters used when a placeholder has no explicit length.
const DefaultHashLength = 20

var hashPlaceholder = regexp.MustCompile(`\[(hash|contenthash|chunkhash)(?::(\d+))?\]`)

// HasHashPlaceholder reports whether pattern embeds a content hash.
func HasHashPlaceholder(pattern string) bool {
	return hashPlaceholder.MatchString(pattern)
}

// ExpandPattern fills in the [name] and hash placeholders of an output pattern.
// hash must be at least as long as the longest requested length.
func ExpandPattern(pattern, name, hash string) string {
	out := strings.ReplaceAll(pattern, "[name]", name)

	return hashPlaceholder.ReplaceAllStringFunc(out, func(m string) string {
		n := DefaultHashLength
		if sub := hashPlaceholder.FindStringSubmatch(m); sub[2] != "" {
			if v, err := strconv.Atoi(sub[2]); err == nil && v > 0 {
				n = v
			}
		}
		if n > len(hash) {
			n = len(hash)
		}
		return hash[:n]
	})
}

var placeholder = regexp.MustCompile(`\[(name|ext|hash|contenthash|chunkhash)(?::\d+)?\]`)

// MatchesPattern reports whether name could have been produced by pattern. [ext] matches a file extension
// so the same check covers bundler-named assets.
func MatchesPattern(pattern, name string) bool {
	var b strings.Builder
	b.WriteString("^")

	rest := pattern
	for {
		loc := placeholder.FindStringIndex(rest)
		if loc == nil {
			b.WriteString(regexp.QuoteMeta(rest))
			break
		}
		b.WriteString(regexp.QuoteMeta(rest[:loc[0]]))
		if rest[loc[0]:loc[1]] == "[name]" {
			b.WriteString(`[^/]+`)
		} else {
			b.WriteString(`[A-Za-z0-9]+`)
		}
		rest = rest[loc[1]:]
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return false
	}
	return re.MatchString(name)
}
