package dict

import (
	"fmt"

	"github.com/lemenkov/pspp-go/ident"
)

// RecodeToUnicode re-encodes every name, label, and attribute value from
// the dictionary's current encoding to UTF-8 and switches its encoding
// (spec §4.F "codepage_to_unicode").
//
// Re-encoding can make two previously distinct names collide (different
// codepage bytes both decoding to characters that, once folded, match an
// existing name); the colliding identifier is disambiguated by appending
// "Var1", "Var2", ... (variables), "Vec1", ... (vectors), or "MrSet1", ...
// (multiple-response sets).
func (d *Dictionary) RecodeToUnicode() error {
	utf8 := ident.UTF8()
	seen := make(map[string]bool, len(d.vars))

	for _, v := range d.vars {
		newName, err := recodeIdentifier(v.Name, utf8, seen, "Var")
		if err != nil {
			return err
		}
		v.Name = newName
		v.Label = recodeText(v.Label)
		for k, vals := range v.Attributes {
			for i, val := range vals {
				vals[i] = recodeText(val)
			}
			v.Attributes[k] = vals
		}
	}

	vecSeen := make(map[string]bool, len(d.vectors))
	for _, vec := range d.vectors {
		vec.Name = recodeName(vec.Name, vecSeen, "Vec")
	}

	mrSeen := make(map[string]bool, len(d.mrsets))
	for _, s := range d.mrsets {
		s.Name = recodeName(s.Name, mrSeen, "MrSet")
		s.Label = recodeText(s.Label)
	}

	d.encoding = utf8

	return nil
}

// recodeText is a placeholder identity pass: callers already hold Go
// strings (decoded once at read time), so there is nothing further to
// transcode; this exists so every text field visibly goes through the
// recode step and future encodings needing real transcoding have a home.
func recodeText(s string) string { return s }

func recodeIdentifier(id ident.Identifier, enc *ident.Encoding, seen map[string]bool, suffix string) (ident.Identifier, error) {
	name := recodeName(id.String(), seen, suffix)
	return ident.New(name, enc)
}

func recodeName(name string, seen map[string]bool, suffix string) string {
	key := foldKey(name)
	if !seen[key] {
		seen[key] = true
		return name
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s%s%d", name, suffix, i)
		if !seen[foldKey(candidate)] {
			seen[foldKey(candidate)] = true
			return candidate
		}
	}
}
