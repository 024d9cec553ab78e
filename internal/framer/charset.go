package framer

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

// Charset decodes process output into UTF-8 lines and encodes record
// bodies back into the configured character set.
type Charset struct {
	name string
	enc  encoding.Encoding // nil for UTF-8
}

// UTF8 is the passthrough charset.
var UTF8 = Charset{name: "UTF-8"}

// LookupCharset resolves an IANA charset name such as "UTF-8",
// "ISO-8859-1" or "Shift_JIS".
func LookupCharset(name string) (Charset, error) {
	n := strings.TrimSpace(name)
	if n == "" || strings.EqualFold(n, "utf-8") || strings.EqualFold(n, "utf8") {
		return UTF8, nil
	}
	enc, err := ianaindex.IANA.Encoding(n)
	if err != nil {
		return Charset{}, fmt.Errorf("unknown charset %q: %w", name, err)
	}
	if enc == nil {
		return Charset{}, fmt.Errorf("unsupported charset %q", name)
	}
	canonical, err := ianaindex.IANA.Name(enc)
	if err != nil {
		canonical = n
	}
	return Charset{name: canonical, enc: enc}, nil
}

func (c Charset) Name() string {
	if c.name == "" {
		return UTF8.name
	}
	return c.name
}

// NewReader decodes r into UTF-8.
func (c Charset) NewReader(r io.Reader) io.Reader {
	if c.enc == nil {
		return r
	}
	return transform.NewReader(r, c.enc.NewDecoder())
}

// Encode converts s to the charset; unmappable runes are replaced.
func (c Charset) Encode(s string) []byte {
	if c.enc == nil {
		return []byte(s)
	}
	b, err := encoding.ReplaceUnsupported(c.enc.NewEncoder()).Bytes([]byte(s))
	if err != nil {
		return []byte(s)
	}
	return b
}
