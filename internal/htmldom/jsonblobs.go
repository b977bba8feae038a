package htmldom

import (
	"regexp"
	"strings"

	"github.com/lattani/trackwright/internal/jsonval"
)

var scriptTagRe = regexp.MustCompile(`(?is)<script([^>]*)>(.*?)</script>`)
var scriptTypeRe = regexp.MustCompile(`(?i)type\s*=\s*["']([^"']+)["']`)

var jsKeywordPrefixRe = regexp.MustCompile(`(?i)^\s*(function|var|let|const|class|import|export)\b`)

var nextDataRe = regexp.MustCompile(`(?s)__NEXT_DATA__\s*=\s*(\{.*?\})\s*;`)
var productJSONAssignRe = regexp.MustCompile(`(?s)Product\.json\s*=\s*(\{.*?\})\s*;`)

// ExtractEmbeddedJSON harvests every JSON blob embedded in rawHTML, per the
// Parser contract: JSON-LD and application/json script bodies, heuristically
// detected inline object/array literals in other scripts, and the
// __NEXT_DATA__ / Product.json assignment idioms some storefronts use.
// Parse failures are silently dropped rather than surfaced as errors.
func ExtractEmbeddedJSON(rawHTML []byte) []jsonval.Value {
	html := string(rawHTML)
	var out []jsonval.Value

	for _, m := range scriptTagRe.FindAllStringSubmatch(html, -1) {
		attrs, body := m[1], strings.TrimSpace(m[2])
		if body == "" {
			continue
		}
		scriptType := ""
		if tm := scriptTypeRe.FindStringSubmatch(attrs); tm != nil {
			scriptType = strings.ToLower(strings.TrimSpace(tm[1]))
		}

		switch scriptType {
		case "application/ld+json":
			out = append(out, parseLDJSON(body)...)
		case "application/json":
			if v, err := jsonval.Parse([]byte(body)); err == nil {
				out = append(out, v)
			}
		case "", "text/javascript", "application/javascript":
			// Assignment idioms are harvested once, by the regexes below.
			if nextDataRe.MatchString(body) || productJSONAssignRe.MatchString(body) {
				continue
			}
			out = append(out, parseHeuristicScript(body)...)
		}
	}

	if m := nextDataRe.FindStringSubmatch(html); m != nil {
		if v, err := jsonval.Parse([]byte(m[1])); err == nil {
			out = append(out, v)
		}
	}
	if m := productJSONAssignRe.FindStringSubmatch(html); m != nil {
		if v, err := jsonval.Parse([]byte(m[1])); err == nil {
			out = append(out, v)
		}
	}

	return out
}

// parseLDJSON parses a JSON-LD script body, flattening a top-level array
// into one entry per element (storefronts sometimes emit a list of
// Product/Offer/BreadcrumbList objects in a single script tag).
func parseLDJSON(body string) []jsonval.Value {
	v, err := jsonval.Parse([]byte(body))
	if err != nil {
		return nil
	}
	if arr, ok := v.AsArray(); ok {
		return arr
	}
	return []jsonval.Value{v}
}

// parseHeuristicScript looks for a standalone object/array literal of at
// least 20 characters in a plain <script> body that isn't a function/class/
// module declaration, and attempts to parse it as JSON.
func parseHeuristicScript(body string) []jsonval.Value {
	trimmed := strings.TrimSpace(body)
	if jsKeywordPrefixRe.MatchString(trimmed) {
		return nil
	}

	start := strings.IndexAny(trimmed, "{[")
	if start < 0 {
		return nil
	}
	candidate := balancedLiteral(trimmed[start:])
	if len(candidate) < 20 {
		return nil
	}
	v, err := jsonval.Parse([]byte(candidate))
	if err != nil {
		return nil
	}
	return []jsonval.Value{v}
}

// balancedLiteral returns the shortest prefix of s that is a balanced
// {...} or [...] literal (respecting quoted strings), or "" if s never
// balances.
func balancedLiteral(s string) string {
	if len(s) == 0 {
		return ""
	}
	open := s[0]
	var close byte
	switch open {
	case '{':
		close = '}'
	case '[':
		close = ']'
	default:
		return ""
	}

	depth := 0
	inString := false
	var quote byte
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			if escaped {
				escaped = false
				continue
			}
			switch c {
			case '\\':
				escaped = true
			case quote:
				inString = false
			}
			continue
		}
		switch c {
		case '"', '\'':
			inString = true
			quote = c
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}
