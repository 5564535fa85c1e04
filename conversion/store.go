package conversion

import "context"

// Store is the conversion slice of the unified store interface.
type Store interface {
	AppendConversion(ctx context.Context, c *Conversion) error
	ListConversions(ctx context.Context) ([]*Conversion, error)
}
