package event

// Variant identifies the payload format an event carries, per spec.md §3.2.
type Variant int

const (
	// Plain is an opaque string payload (wire content-type text/plain).
	Plain Variant = iota
	// Tree is an ordered labelled tree of elements (application/xml).
	Tree
	// Mapping is a recursive mapping/list of primitives (application/json).
	Mapping
	// Form is an ordered list of {key: tuple-of-values} objects
	// (application/x-www-form-urlencoded).
	Form
)

// String returns the human-readable variant name.
func (v Variant) String() string {
	switch v {
	case Plain:
		return "plain"
	case Tree:
		return "tree"
	case Mapping:
		return "mapping"
	case Form:
		return "form"
	default:
		return "unknown"
	}
}

// ContentType returns the wire content-type associated with the variant.
func (v Variant) ContentType() string {
	switch v {
	case Plain:
		return "text/plain"
	case Tree:
		return "application/xml"
	case Mapping:
		return "application/json"
	case Form:
		return "application/x-www-form-urlencoded"
	default:
		return "application/octet-stream"
	}
}

// isWidening reports whether converting from -> to is an allowed widening
// conversion per spec.md §3.2: to the same variant, or to Plain (every
// variant widens to Plain's superclass role via its documented string
// form), or among Tree/Mapping/Form via their documented conversion paths.
// Plain never widens to a structured variant implicitly from arbitrary
// text — only the reverse (structured -> Plain, via data_string) and
// explicit string-reparse are allowed.
//
// This mirrors the Python class lattice: Event (Plain) sits at the root,
// and XMLEvent/JSONEvent/_XWWWFormFormatInterface are siblings that each
// subclass Event, so widening from a sibling back to the Event root (Plain)
// is always legal, while widening across siblings uses the documented
// Tree<->Mapping<->Form conversion paths rather than class inheritance.
func isWidening(from, to Variant) bool {
	if from == to {
		return true
	}
	if to == Plain {
		// Every variant has a documented string form (data_string in the
		// original), so narrowing-to-Plain is always representable.
		return true
	}
	if from == Plain {
		// Plain -> structured is only legal through an explicit re-parse
		// of the string as the target's canonical textual form; callers
		// needing that must go through SetData, not Convert.
		return false
	}
	// Tree <-> Mapping <-> Form all have documented conversion paths.
	switch from {
	case Tree, Mapping, Form:
		switch to {
		case Tree, Mapping, Form:
			return true
		}
	}
	return false
}
