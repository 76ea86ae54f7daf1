package pathsvc

import (
	"strconv"
	"strings"
)

// NameComponents splits a file name into a base, an optional numeric
// variant suffix (the "-1", "-2", … lockbook appends on a collision), and
// an optional extension. Ported line-by-line from the original core's
// filename NameComponents/generate_incremented algorithm: split on the last
// "." for the extension, then on the last "-" for a numeric variant.
type NameComponents struct {
	Name      string
	Variant   *int
	Extension string // without the leading dot; empty if none
}

// ParseNameComponents decomposes name into its NameComponents.
func ParseNameComponents(name string) NameComponents {
	base := name
	extension := ""

	if dot := strings.LastIndex(base, "."); dot > 0 {
		extension = base[dot+1:]
		base = base[:dot]
	}

	var variant *int
	if dash := strings.LastIndex(base, "-"); dash >= 0 {
		candidate := base[dash+1:]
		if n, err := strconv.Atoi(candidate); err == nil && candidate != "" {
			v := n
			variant = &v
			base = base[:dash]
		}
	}

	return NameComponents{Name: base, Variant: variant, Extension: extension}
}

// ToName reassembles the components into a file name.
func (c NameComponents) ToName() string {
	name := c.Name
	if c.Variant != nil {
		name += "-" + strconv.Itoa(*c.Variant)
	}
	if c.Extension != "" {
		name += "." + c.Extension
	}
	return name
}

// GenerateNext returns the components with the variant incremented by one
// (starting at 1 if there was none).
func (c NameComponents) GenerateNext() NameComponents {
	next := 1
	if c.Variant != nil {
		next = *c.Variant + 1
	}
	out := c
	out.Variant = &next
	return out
}

// NextInChildren increments c's variant until ToName() is absent from
// taken, returning the first free name. Used by NextAvailableName and the
// sync engine's auto-rename-on-conflict.
func (c NameComponents) NextInChildren(taken map[string]struct{}) string {
	candidate := c
	for {
		name := candidate.ToName()
		if _, exists := taken[name]; !exists {
			return name
		}
		candidate = candidate.GenerateNext()
	}
}
