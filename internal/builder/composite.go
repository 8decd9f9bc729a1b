package builder

import (
	"image"

	amerrors "github.com/Aman-CERP/amanvis/internal/errors"
	"github.com/Aman-CERP/amanvis/internal/feature"
)

// Composite merges several builders into one record by concatenating their
// fields in registration order.
//
// If any constituent fails, Build returns no record and a single error that
// carries the identifier. Degraded records with missing descriptors are never
// produced.
type Composite struct {
	builders []Builder
}

// NewComposite creates a composite over the given builders.
func NewComposite(builders ...Builder) *Composite {
	c := &Composite{}
	for _, b := range builders {
		c.AddBuilder(b)
	}
	return c
}

// AddBuilder registers b. Not safe for concurrent use; all builders must be
// added before the first Build call.
func (c *Composite) AddBuilder(b Builder) {
	c.builders = append(c.builders, b)
}

// Len returns the number of registered builders.
func (c *Composite) Len() int {
	return len(c.builders)
}

// Build implements Builder.
func (c *Composite) Build(img image.Image, identifier string) (*feature.Record, error) {
	rec := feature.NewRecord(identifier)
	for _, b := range c.builders {
		part, err := b.Build(img, identifier)
		if err != nil {
			return nil, withIdentifier(identifier, err)
		}
		for _, f := range part.Fields {
			if err := rec.Add(f); err != nil {
				return nil, amerrors.BuildError(identifier, err)
			}
		}
	}
	return rec, nil
}

// withIdentifier wraps err as a build error unless it already is one.
func withIdentifier(identifier string, err error) error {
	if amerrors.GetCode(err) == amerrors.ErrCodeBuildFailed {
		return err
	}
	return amerrors.BuildError(identifier, err)
}
