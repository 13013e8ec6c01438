package lform

// Kind tags a form for naming and deduplication of generated units.
type Kind string

const (
	// KindInvoke is an ad hoc pipeline built by hand.
	KindInvoke Kind = "invoke"

	// KindBound is a pipeline produced by binding an argument.
	KindBound Kind = "bound"

	// KindIdentity returns its single argument.
	KindIdentity Kind = "identity"

	// KindZero returns the zero value of its return type.
	KindZero Kind = "zero"

	// KindReinvoke calls the handle held in bound field 0.
	KindReinvoke Kind = "reinvoke"

	// KindDirect calls the target function held in bound field 0.
	KindDirect Kind = "direct"

	// KindDelegate calls the target of a delegating receiver.
	KindDelegate Kind = "delegate"

	// KindInvoker calls the handle passed as its first argument.
	KindInvoker Kind = "invoker"

	// KindCallSite calls the current target of a call site receiver.
	KindCallSite Kind = "callsite"
)

// Kinds lists every kind in naming order.
var Kinds = []Kind{KindInvoke, KindBound, KindIdentity, KindZero, KindReinvoke, KindDirect, KindDelegate, KindInvoker, KindCallSite}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}
