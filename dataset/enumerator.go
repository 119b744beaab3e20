package dataset

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Category selects which iocage root a listing reads.
type Category string

const (
	CategoryAll      Category = "all"
	CategoryBasejail Category = "basejail"
	CategoryUUID     Category = "uuid"
	CategoryBase     Category = "base"
	CategoryTemplate Category = "template"
)

// ParseCategory maps a --type argument to a Category.
func ParseCategory(s string) (Category, error) {
	switch c := Category(s); c {
	case CategoryAll, CategoryBasejail, CategoryUUID, CategoryBase, CategoryTemplate:
		return c, nil
	case "":
		return CategoryAll, nil
	}
	return "", fmt.Errorf("unknown list type %q (want all, basejail, uuid, base or template)", s)
}

// Enumerator walks the iocage roots of one pool.
type Enumerator struct {
	store  Store
	pool   string
	root   string
	strict bool
	logger *zap.Logger
}

// EnumeratorOption configures an Enumerator.
type EnumeratorOption func(*Enumerator)

// WithStrictIndex makes Index fail when a jail and a template share an
// identity instead of keeping the last one seen.
func WithStrictIndex(strict bool) EnumeratorOption {
	return func(e *Enumerator) { e.strict = strict }
}

// WithLogger sets the logger used for collision warnings.
func WithLogger(logger *zap.Logger) EnumeratorOption {
	return func(e *Enumerator) { e.logger = logger }
}

// NewEnumerator reads <pool>/<root>/{jails,templates,releases}. An empty
// root means "iocage".
func NewEnumerator(store Store, pool, root string, opts ...EnumeratorOption) *Enumerator {
	if root == "" {
		root = "iocage"
	}
	e := &Enumerator{store: store, pool: pool, root: root, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Root returns the dataset a category's children live under.
func (e *Enumerator) Root(c Category) string {
	switch c {
	case CategoryBase:
		return fmt.Sprintf("%s/%s/releases", e.pool, e.root)
	case CategoryTemplate:
		return fmt.Sprintf("%s/%s/templates", e.pool, e.root)
	}
	return fmt.Sprintf("%s/%s/jails", e.pool, e.root)
}

// List returns the children of the category root in store order.
func (e *Enumerator) List(ctx context.Context, c Category) ([]Dataset, error) {
	root := e.Root(c)
	if err := ValidateName(root); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrEnumeration, root, err)
	}

	children, err := e.store.Children(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnumeration, err)
	}
	return children, nil
}

// Collision records an identity present under more than one root.
type Collision struct {
	Identity string `json:"identity"`
	Previous string `json:"previous"`
	Current  string `json:"current"`
}

// Index maps every jail and template identity to its mountpoint.
type Index struct {
	Mountpoints map[string]string `json:"mountpoints"`
	Collisions  []Collision       `json:"collisions,omitempty"`
}

// Index merges jails then templates into one identity → mountpoint map.
// On a shared identity the template wins and the collision is recorded,
// unless the enumerator is strict.
func (e *Enumerator) Index(ctx context.Context) (*Index, error) {
	index := &Index{Mountpoints: make(map[string]string)}

	for _, c := range []Category{CategoryAll, CategoryTemplate} {
		children, err := e.List(ctx, c)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			id := child.Base()
			if previous, ok := index.Mountpoints[id]; ok {
				if e.strict {
					return nil, fmt.Errorf("%w: %s (%s and %s)", ErrIdentityConflict, id, previous, child.Mountpoint)
				}
				index.Collisions = append(index.Collisions, Collision{Identity: id, Previous: previous, Current: child.Mountpoint})
				e.logger.Warn("identity collision in uuid index",
					zap.String("identity", id),
					zap.String("previous", previous),
					zap.String("current", child.Mountpoint))
			}
			index.Mountpoints[id] = child.Mountpoint
		}
	}
	return index, nil
}
