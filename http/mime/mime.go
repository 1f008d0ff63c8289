// Package mime holds MIME type/charset constants and the small interning
// cache ContentType charset lookups use, as spec's design notes call for.
package mime

import "github.com/duskhttp/dusk/internal/strutil"

type MIME = string

const (
	OctetStream    MIME = "application/octet-stream"
	Plain          MIME = "text/plain"
	HTML           MIME = "text/html"
	JSON           MIME = "application/json"
	FormUrlencoded MIME = "application/x-www-form-urlencoded"
	Multipart      MIME = "multipart/form-data"
)

// Complies reports whether two MIMEs are compatible, ignoring any
// `;`-separated parameters on the right-hand side. An empty left-hand MIME
// is treated as compatible with anything.
func Complies(want MIME, with string) bool {
	with, _ = strutil.CutHeader(with)
	return len(want) == 0 || with == want
}

type Charset = string

const (
	Unset  Charset = ""
	UTF8   Charset = "utf-8"
	ASCII  Charset = "ascii"
	CP1251 Charset = "cp1251"
	CP1252 Charset = "cp1252"
)

// charsetTable interns the handful of charset tokens seen in practice, so
// that the common case of parsing a Content-Type header doesn't allocate a
// new string per request.
var charsetTable = map[string]Charset{
	"utf-8":        UTF8,
	"utf8":         UTF8,
	"ascii":        ASCII,
	"us-ascii":     ASCII,
	"cp1251":       CP1251,
	"cp1252":       CP1252,
	"windows-1251": CP1251,
	"windows-1252": CP1252,
}

// ParseCharset extracts and interns the charset parameter out of a
// Content-Type header value, e.g. "text/plain; charset=UTF-8" -> UTF8,
// true. Tokens absent from charsetTable are still returned, lower-cased,
// so an unrecognised-but-well-formed charset isn't silently dropped; only
// the parser's well-known set benefits from interning.
func ParseCharset(contentType string) (cs Charset, ok bool) {
	_, params := strutil.CutHeader(contentType)

	var found string
	strutil.WalkParams(params, func(key, value string) {
		if strutil.CmpFold(key, "charset") {
			found = value
		}
	})

	if found == "" {
		return "", false
	}

	lower := toLower(found)
	if interned, hit := charsetTable[lower]; hit {
		return interned, true
	}

	return lower, true
}

func toLower(s string) string {
	out := make([]byte, len(s))
	changed := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
			changed = true
		}

		out[i] = c
	}

	if !changed {
		return s
	}

	return string(out)
}
