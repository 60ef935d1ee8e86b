package source

import (
	"fmt"

	"github.com/google/uuid"
)

// UUIDProvider issues UUIDv7 identifiers, which sort by creation time.
type UUIDProvider struct{}

// NewID returns a fresh UUIDv7 string.
func (UUIDProvider) NewID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return value.String(), nil
}
