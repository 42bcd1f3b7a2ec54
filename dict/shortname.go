package dict

import "strings"

// AssignShortNames assigns every variable's per-segment short names
// following the policy of spec §4.F:
//
//  1. A name already <= 8 bytes claims itself for its first segment.
//  2. Any variable with a remembered short name (from a previous
//     round-trip) gets it, if not already claimed; earlier variables win.
//  3. Remaining first-segment names are generated by truncating to 8 bytes
//     and, on collision, suffixing base-26 letters (_A, _B, ..., _Z, _AA,
//     ...) until unique.
//  4. Additional segments (very long strings) continue the same per-
//     variable suffix counter.
func (d *Dictionary) AssignShortNames() {
	claimed := make(map[string]bool)

	for _, v := range d.vars {
		name := foldKey(v.Name.String())
		if len(name) <= 8 && !claimed[name] {
			v.shortNames = []string{name}
			claimed[name] = true
		} else {
			v.shortNames = nil
		}
	}

	for _, v := range d.vars {
		if v.shortNames != nil {
			continue
		}
		for _, remembered := range v.rememberedShortNames {
			key := foldKey(remembered)
			if !claimed[key] {
				v.shortNames = []string{key}
				claimed[key] = true
				break
			}
		}
	}

	for _, v := range d.vars {
		n := len(v.Segments())
		counter := 0
		if v.shortNames == nil {
			name, next := generateShortName(foldKey(v.Name.String()), counter, claimed)
			v.shortNames = []string{name}
			claimed[name] = true
			counter = next
		}
		for len(v.shortNames) < n {
			name, next := generateShortName(foldKey(v.Name.String()), counter, claimed)
			v.shortNames = append(v.shortNames, name)
			claimed[name] = true
			counter = next
		}
	}
}

// generateShortName produces the next unclaimed short name derived from
// base, starting the search at suffix index start, and returns the index to
// resume from on the next call for the same variable.
func generateShortName(base string, start int, claimed map[string]bool) (string, int) {
	if len(base) > 8 {
		base = base[:8]
	}

	for k := start; ; k++ {
		var candidate string
		if k == 0 {
			candidate = base
		} else {
			suffix := "_" + base26(k)
			trunc := base
			if len(trunc)+len(suffix) > 8 {
				trunc = trunc[:8-len(suffix)]
				if trunc == "" {
					trunc = "V"
				}
			}
			candidate = trunc + suffix
		}
		if !claimed[candidate] {
			return candidate, k + 1
		}
	}
}

// base26 encodes k (1-based) as A, B, ..., Z, AA, AB, ... .
func base26(k int) string {
	var b strings.Builder
	for k > 0 {
		k--
		b.WriteByte(byte('A' + k%26))
		k /= 26
	}
	s := b.String()
	// digits were generated least-significant first
	runes := []byte(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}
