// Package image parses container image references and checks whether an image
// belongs to a known image family.
package image

import (
	"errors"
	"fmt"

	"github.com/distribution/reference"
)

// ErrIncompatible is returned when an image does not belong to the expected family.
var ErrIncompatible = errors.New("incompatible image")

// Reference is a parsed, normalized image reference.
type Reference struct {
	named reference.Named
}

// Parse parses s as an image reference. Short names are normalized against
// Docker Hub, so "apache/kafka:3.9.1" becomes "docker.io/apache/kafka:3.9.1".
func Parse(s string) (Reference, error) {
	if s == "" {
		return Reference{}, errors.New("empty image reference")
	}
	named, err := reference.ParseNormalizedNamed(s)
	if err != nil {
		return Reference{}, fmt.Errorf("invalid image reference %q: %w", s, err)
	}
	return Reference{named: named}, nil
}

// Repository returns the fully qualified repository, without tag or digest.
func (r Reference) Repository() string {
	if r.named == nil {
		return ""
	}
	return r.named.Name()
}

// Tag returns the tag, or "latest" when the reference carries neither tag nor digest.
func (r Reference) Tag() string {
	if r.named == nil {
		return ""
	}
	if tagged, ok := r.named.(reference.Tagged); ok {
		return tagged.Tag()
	}
	if _, ok := r.named.(reference.Digested); ok {
		return ""
	}
	return "latest"
}

func (r Reference) String() string {
	if r.named == nil {
		return ""
	}
	return reference.FamiliarString(r.named)
}

// AssertCompatible returns an error wrapping ErrIncompatible unless image and
// base share the same repository. Tags are ignored.
func AssertCompatible(image, base string) error {
	img, err := Parse(image)
	if err != nil {
		return err
	}
	b, err := Parse(base)
	if err != nil {
		return err
	}
	if img.Repository() != b.Repository() {
		return fmt.Errorf("%w: %s is not compatible with %s", ErrIncompatible, img.Repository(), b.Repository())
	}
	return nil
}
