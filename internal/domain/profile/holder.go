package profile

import "fmt"

// Holder publishes the outcome of the startup load. It is built once and
// never mutated, so concurrent readers need no locking.
type Holder struct {
	set   *Set
	cause error
}

// NewHolder records a load outcome. A non-nil err, or a nil set, marks the
// profiles unavailable.
func NewHolder(set *Set, err error) *Holder {
	if err == nil && set == nil {
		err = fmt.Errorf("no profile set loaded")
	}
	if err != nil {
		return &Holder{cause: err}
	}
	return &Holder{set: set}
}

// Get returns the loaded set or ErrProfileUnavailable wrapping the load cause.
func (h *Holder) Get() (*Set, error) {
	if h == nil {
		return nil, ErrProfileUnavailable
	}
	if h.set == nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileUnavailable, h.cause)
	}
	return h.set, nil
}

// Available reports whether the profiles loaded successfully.
func (h *Holder) Available() bool {
	return h != nil && h.set != nil
}
