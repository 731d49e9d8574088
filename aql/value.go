package aql

type (
	// Expr is a fragment of AQL that is emitted verbatim, without quoting or escaping,
	// wherever a value or a field reference is accepted. Use it to reference attributes,
	// call functions or embed any other AQL construct on places that usually hold data.
	//
	// Never build an Expr from user input.
	Expr struct {
		text string
	}

	// Doc is a mapping that keeps the insertion order of its keys when serialized.
	// Plain Go maps are serialized with their keys sorted.
	Doc []KV

	// KV is a single Doc entry.
	KV struct {
		Key   string
		Value any
	}
)

// Raw creates an [Expr] with the given AQL text.
func Raw(text string) Expr {
	return Expr{text: text}
}

// String returns the AQL text of the expression.
func (e Expr) String() string {
	return e.text
}

// Get returns the value of the first entry with the given key.
func (d Doc) Get(key string) (any, bool) {
	for _, kv := range d {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return nil, false
}
