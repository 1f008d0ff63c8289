// Package uri decodes the request-line target the parser hands the channel
// into a usable path: UTF-8 first, falling back to ISO-8859-1, then
// collapsing `.`/`..` segments the way start_request (spec §4.5.1) requires.
//
// None of the pack's example repos carry a dot-segment path cleaner as a
// third-party import (net/url and the teacher's own http/path.go stop at
// escaping, not canonicalisation), so this is a small hand-rolled pass
// rather than a borrowed library — see DESIGN.md.
package uri

import (
	"strings"
	"unicode/utf8"
)

// DecodePath turns a raw request-target path into a string, trying UTF-8
// first and falling back to a byte-for-byte ISO-8859-1 interpretation if the
// bytes aren't valid UTF-8. It never fails: every byte sequence is valid
// Latin-1.
func DecodePath(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}

	return decodeLatin1(raw)
}

func decodeLatin1(raw []byte) string {
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}

	return string(runes)
}

// Clean removes `.` and `..` segments from an absolute path, the way
// start_request canonicalises the decoded path before storing it as
// Request.PathInfo. A `..` that would escape the root is dropped rather
// than propagated above it. An input that resolves to nothing becomes "/".
func Clean(path string) string {
	if path == "" {
		return "/"
	}

	absolute := path[0] == '/'
	segments := strings.Split(path, "/")
	kept := make([]string, 0, len(segments))

	for _, seg := range segments {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(kept) > 0 {
				kept = kept[:len(kept)-1]
			}
		default:
			kept = append(kept, seg)
		}
	}

	cleaned := strings.Join(kept, "/")
	if absolute {
		cleaned = "/" + cleaned
	}

	if cleaned == "" {
		return "/"
	}

	return cleaned
}

// SplitAuthority splits a CONNECT request-target ("host:port") into its
// host and port parts. Port is "" if absent.
func SplitAuthority(authority string) (host, port string) {
	if i := strings.LastIndexByte(authority, ':'); i != -1 {
		return authority[:i], authority[i+1:]
	}

	return authority, ""
}

// SplitTarget splits an origin-form request-target into its path and query
// components, e.g. "/a/b?x=1" -> ("/a/b", "x=1").
func SplitTarget(target string) (path, query string) {
	if i := strings.IndexByte(target, '?'); i != -1 {
		return target[:i], target[i+1:]
	}

	return target, ""
}
