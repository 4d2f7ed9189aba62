package host

// Attribute describes one column of a tuple.
type Attribute struct {
	Name    string
	TypeOID OID
	// TypeMod carries type modifiers such as varchar length; -1 when unset.
	TypeMod int32
}

// TupleDesc describes the columns of a tuple.
type TupleDesc struct {
	Attrs []Attribute
}

// NewTupleDesc builds a descriptor from attributes.
func NewTupleDesc(attrs ...Attribute) *TupleDesc {
	return &TupleDesc{Attrs: attrs}
}

// NumAttrs returns the number of columns.
func (d *TupleDesc) NumAttrs() int { return len(d.Attrs) }

// Copy returns a deep copy that can be modified independently.
func (d *TupleDesc) Copy() *TupleDesc {
	attrs := make([]Attribute, len(d.Attrs))
	copy(attrs, d.Attrs)
	return &TupleDesc{Attrs: attrs}
}

// TupleSlot holds one row in Datum form.
type TupleSlot struct {
	Desc   *TupleDesc
	Values []Datum
	IsNull []bool
}

// NewTupleSlot allocates a slot for desc with every column NULL.
func NewTupleSlot(desc *TupleDesc) *TupleSlot {
	s := &TupleSlot{
		Desc:   desc,
		Values: make([]Datum, desc.NumAttrs()),
		IsNull: make([]bool, desc.NumAttrs()),
	}
	s.Clear()
	return s
}

// Clear marks every column NULL.
func (s *TupleSlot) Clear() {
	for i := range s.Values {
		s.Values[i] = Datum{}
		s.IsNull[i] = true
	}
}

// Set stores a non-NULL value in column i.
func (s *TupleSlot) Set(i int, d Datum) {
	s.Values[i] = d
	s.IsNull[i] = false
}

// SetNull marks column i NULL.
func (s *TupleSlot) SetNull(i int) {
	s.Values[i] = Datum{}
	s.IsNull[i] = true
}
