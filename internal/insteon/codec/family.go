package codec

// Family is an ordered set of alternative shapes sharing one decode entry
// point. Alternatives may be Tags, Composites or other Families.
//
// Families model mutually exclusive message kinds that share a leading
// byte pattern. Every modem message starts with the start byte, so the
// second byte selects the alternative; a Family simply tries each one in
// order, and because the alternatives begin with distinct tags at most one
// can succeed on a well-formed frame.
//
// The alternative list is fixed when the family is declared. Add exists for
// catalogs assembled across several declarations and must only be called
// during package initialisation.
type Family struct {
	name string
	alts []Type
}

// NewFamily declares a family with its alternatives in dispatch order.
func NewFamily(name string, alts ...Type) *Family {
	return &Family{name: name, alts: append([]Type(nil), alts...)}
}

// Add appends alternatives after the existing ones.
func (f *Family) Add(alts ...Type) *Family {
	f.alts = append(f.alts, alts...)
	return f
}

// Name implements Type.
func (f *Family) Name() string { return f.name }

// Alternatives returns the alternatives in dispatch order.
func (f *Family) Alternatives() []Type {
	return append([]Type(nil), f.alts...)
}

// Tags returns every tag reachable from the family, depth-first.
func (f *Family) Tags() []Tag {
	var tags []Tag
	for _, alt := range f.alts {
		switch a := alt.(type) {
		case Tag:
			tags = append(tags, a)
		case *Family:
			tags = append(tags, a.Tags()...)
		}
	}
	return tags
}

// Lookup returns the family tag bound to code.
func (f *Family) Lookup(code byte) (Tag, bool) {
	for _, t := range f.Tags() {
		if t.code == code {
			return t, true
		}
	}
	return Tag{}, false
}

// Accepts implements Type.
func (f *Family) Accepts(v Value) bool {
	for _, alt := range f.alts {
		if alt.Accepts(v) {
			return true
		}
	}
	return false
}

// Decode implements Type.
//
// Alternatives are tried in declaration order and the first success wins.
// When all fail, the returned failure wraps the one with the greatest Depth;
// among equally deep failures the earliest declared alternative is reported.
func (f *Family) Decode(buf []byte, offset int) (Value, int, *Failure) {
	var deepest *Failure
	for _, alt := range f.alts {
		v, n, fail := alt.Decode(buf, offset)
		if fail == nil {
			return v, n, nil
		}
		if deepest == nil || fail.Depth > deepest.Depth {
			deepest = fail
		}
	}
	if deepest == nil {
		return nil, 0, &Failure{Type: f.name, Offset: offset, Reason: "family has no alternatives"}
	}
	return nil, 0, &Failure{
		Type:   f.name,
		Offset: offset,
		Depth:  deepest.Depth,
		Reason: deepest.Reason,
		Cause:  deepest,
	}
}
