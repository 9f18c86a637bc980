//go:build !cgo

package scope

import (
	"context"
	"errors"
)

// IsAvailable reports whether structural scope analysis is compiled in.
// Without CGO the package degrades to the identifier census.
func IsAvailable() bool {
	return false
}

var errNoStructural = errors.New("structural scope analysis requires cgo")

func parseVisible(ctx context.Context, source []byte, line int) ([]Entry, error) {
	return nil, errNoStructural
}

func parseModuleTopLevel(ctx context.Context, source []byte) ([]Entry, error) {
	return nil, errNoStructural
}

func parseClassAttributes(ctx context.Context, source []byte, className string) ([]Entry, bool, error) {
	return nil, false, errNoStructural
}
