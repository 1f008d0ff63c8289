// Package cookie parses the Cookie request header into a kv.Storage jar and
// renders Set-Cookie response values.
package cookie

import (
	"errors"
	"strings"

	"github.com/duskhttp/dusk/kv"
)

// Jar is a key-value store of cookie names to values.
type Jar = *kv.Storage

func NewJar() Jar {
	return kv.New()
}

func NewJarPrealloc(n int) Jar {
	return kv.NewPrealloc(n)
}

var ErrMalformed = errors.New("cookie: malformed syntax")

// Parse decodes a Cookie request header's value into jar. It is not
// applicable to Set-Cookie values, whose grammar differs.
func Parse(jar Jar, data string) error {
	for len(data) > 0 {
		eq := strings.IndexByte(data, '=')
		if eq == -1 {
			return ErrMalformed
		}

		key := data[:eq]
		if len(key) == 0 {
			return ErrMalformed
		}

		data = data[eq+1:]

		var value string
		if sc := strings.IndexByte(data, ';'); sc != -1 {
			value, data = data[:sc], strings.TrimPrefix(data[sc+1:], " ")
		} else {
			value, data = data, ""
		}

		jar.Add(key, value)
	}

	return nil
}

// Cookie is a single Set-Cookie directive.
type Cookie struct {
	Name, Value string
	Path        string
	Domain      string
	HTTPOnly    bool
	Secure      bool
}

// String renders the Set-Cookie header value.
func (c Cookie) String() string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteByte('=')
	b.WriteString(c.Value)

	if c.Path != "" {
		b.WriteString("; Path=")
		b.WriteString(c.Path)
	}
	if c.Domain != "" {
		b.WriteString("; Domain=")
		b.WriteString(c.Domain)
	}
	if c.Secure {
		b.WriteString("; Secure")
	}
	if c.HTTPOnly {
		b.WriteString("; HttpOnly")
	}

	return b.String()
}
