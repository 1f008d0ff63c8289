// Package strutil collects the small, allocation-conscious string helpers
// shared by the header multimap, the parser and the serializer.
package strutil

import "strings"

// CmpFold reports whether a and b are equal, ignoring ASCII case. It's the
// comparison kv.Storage runs on every lookup, so it's written to avoid the
// allocations strings.EqualFold's Unicode-aware path would force.
func CmpFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := 0; i < len(a); i++ {
		if a[i]|0x20 != b[i]|0x20 {
			return false
		}
	}

	return true
}

// LStripWS trims leading spaces and tabs.
func LStripWS(str string) string {
	for i := 0; i < len(str); i++ {
		switch str[i] {
		case ' ', '\t':
		default:
			return str[i:]
		}
	}

	return ""
}

// RStripWS trims trailing spaces and tabs.
func RStripWS(str string) string {
	for i := len(str); i > 0; i-- {
		switch str[i-1] {
		case ' ', '\t':
		default:
			return str[:i]
		}
	}

	return ""
}

// CutHeader splits a header value from its `;`-separated parameters, e.g.
// "text/plain; charset=utf-8" -> ("text/plain", "charset=utf-8").
func CutHeader(header string) (value, params string) {
	sep := strings.IndexByte(header, ';')
	if sep == -1 {
		return header, ""
	}

	return header[:sep], LStripWS(header[sep+1:])
}

// CutParams behaves like CutHeader but discards the value, keeping only the
// parameters.
func CutParams(header string) string {
	_, params := CutHeader(header)
	return params
}

// WalkParams iterates over `;`-separated `key=value` parameters, calling fn
// for each pair found. Malformed pairs (no `=`) are skipped.
func WalkParams(params string, fn func(key, value string)) {
	for len(params) > 0 {
		var pair string
		if sep := strings.IndexByte(params, ';'); sep != -1 {
			pair, params = params[:sep], LStripWS(params[sep+1:])
		} else {
			pair, params = params, ""
		}

		eq := strings.IndexByte(pair, '=')
		if eq == -1 {
			continue
		}

		fn(strings.TrimSpace(pair[:eq]), Unquote(strings.TrimSpace(pair[eq+1:])))
	}
}

// Unquote strips a single layer of surrounding double quotes, if present.
func Unquote(str string) string {
	if len(str) > 1 && str[0] == '"' && str[len(str)-1] == '"' {
		return str[1 : len(str)-1]
	}

	return str
}
