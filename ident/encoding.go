package ident

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// Encoding wraps a byte-unit text codec used to decode/encode strings stored
// in a system file (variable names, labels, string data).
//
// Decoding is lossy: unmappable byte sequences are replaced with the
// replacement character and reported via the returned replacement count,
// but decoding never fails outright (spec §4.A).
type Encoding struct {
	name  string
	codec encoding.Encoding
}

// aliases covers codepage labels system files carry that aren't in the
// WHATWG label set htmlindex.Get understands directly.
var aliases = map[string]string{
	"CP1252":      "windows-1252",
	"WINDOWS-1252": "windows-1252",
	"LATIN1":      "iso-8859-1",
	"ASCII":       "windows-1252",
	"US-ASCII":    "windows-1252",
}

// NewEncoding looks up a byte-unit codec by IANA/MIME label (e.g.
// "windows-1252", "UTF-8", "ISO-8859-1"). An empty label resolves to UTF-8.
func NewEncoding(label string) (*Encoding, error) {
	if label == "" {
		label = "UTF-8"
	}

	lookup := label
	if alias, ok := aliases[strings.ToUpper(label)]; ok {
		lookup = alias
	}

	enc, err := htmlindex.Get(lookup)
	if err != nil {
		return nil, fmt.Errorf("ident: unknown encoding %q: %w", label, err)
	}

	return &Encoding{name: label, codec: enc}, nil
}

// UTF8 returns the UTF-8 pass-through encoding.
func UTF8() *Encoding {
	return &Encoding{name: "UTF-8", codec: unicode.UTF8}
}

// Name returns the label the encoding was constructed with.
func (e *Encoding) Name() string { return e.name }

// Decode decodes raw bytes to a UTF-8 string. Unmappable byte sequences are
// substituted with U+FFFD by the underlying x/text decoder; replaced
// reports how many replacement characters appear in the result so callers
// can surface a decode warning (spec §7.2).
func (e *Encoding) Decode(raw []byte) (text string, replaced int, err error) {
	dec := e.codec.NewDecoder()
	out, _, derr := dec.Bytes(raw)
	if derr != nil {
		// The decoder gave up rather than substituting (rare, only for
		// stateful encodings mid-sequence); fall back to treating the
		// bytes as Latin-1 so parsing can still proceed.
		runes := make([]rune, len(raw))
		for i, b := range raw {
			runes[i] = rune(b)
		}
		return string(runes), len(raw), nil
	}

	text = string(out)
	replaced = strings.Count(text, "�")

	return text, replaced, nil
}

// Encode encodes a UTF-8 string to raw bytes in this encoding.
// It fails if text contains code points unrepresentable in the encoding.
func (e *Encoding) Encode(text string) (raw []byte, n int, err error) {
	enc := e.codec.NewEncoder()
	out, n, err := enc.Bytes([]byte(text))
	if err != nil {
		return nil, 0, fmt.Errorf("ident: %q not representable in %s: %w", text, e.name, err)
	}

	return out, n, nil
}
