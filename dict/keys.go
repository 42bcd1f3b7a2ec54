package dict

import "strconv"

// formatFloatKey renders f with enough precision to round-trip exactly, for
// use as a map key in ValueLabels.
func formatFloatKey(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
