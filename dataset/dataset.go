// Package dataset enumerates the ZFS datasets iocage keeps its jails,
// templates and fetched releases under.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
)

var (
	// ErrEnumeration wraps every failure to read a category root. It is
	// the only error the listing does not recover from.
	ErrEnumeration = errors.New("dataset enumeration failed")

	// ErrNotFound is returned by a Store when the named dataset does not
	// exist.
	ErrNotFound = errors.New("dataset not found")

	// ErrIdentityConflict is returned by Index in strict mode when a jail
	// and a template share a name.
	ErrIdentityConflict = errors.New("identity used by more than one dataset")
)

// Dataset is a handle on one child dataset.
type Dataset struct {
	Name       string `json:"name"`
	Mountpoint string `json:"mountpoint"`
}

// Base returns the last path segment of the dataset name, which iocage
// uses as the jail identity.
func (d Dataset) Base() string {
	return path.Base(d.Name)
}

// Store is the read-only view of the dataset store the listing needs.
type Store interface {
	// Children returns the direct children of name in store order.
	Children(ctx context.Context, name string) ([]Dataset, error)

	// Property returns a property value, or "" when it is unset.
	Property(ctx context.Context, name, property string) (string, error)
}

var invalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9/_.:-]`)

// ValidateName checks a pool/dataset path before it is handed to a store.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("dataset name cannot be empty")
	}

	if !strings.Contains(name, "/") {
		return fmt.Errorf("dataset name must include pool name (e.g., 'pool/dataset')")
	}

	if invalidNameChars.MatchString(name) {
		return fmt.Errorf("dataset name contains invalid characters (only alphanumeric, /, _, ., :, - allowed)")
	}

	if strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return fmt.Errorf("dataset name cannot start or end with /")
	}

	if strings.Contains(name, "//") {
		return fmt.Errorf("dataset name cannot contain consecutive slashes")
	}

	return nil
}
