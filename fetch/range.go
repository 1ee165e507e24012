package fetch

import "fmt"

// Range is an inclusive byte range [From, To] in a segment's original byte space.
type Range struct {
	From int64
	To   int64
}

// NewRange validates and returns the range [from, to].
func NewRange(from, to int64) (Range, error) {
	r := Range{From: from, To: to}
	if err := r.Validate(); err != nil {
		return Range{}, err
	}
	return r, nil
}

// Validate reports ErrInvalidRange for negative or inverted ranges.
func (r Range) Validate() error {
	if r.From < 0 || r.To < r.From {
		return fmt.Errorf("%w: %s", ErrInvalidRange, r)
	}
	return nil
}

// Size returns the number of bytes in the range.
func (r Range) Size() int64 {
	return r.To - r.From + 1
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d]", r.From, r.To)
}
