package dataset

import (
	"context"
	"fmt"
	"strings"

	"github.com/truenas/iocage-list/truenas"
)

// Querier is the part of the middleware client the store uses.
type Querier interface {
	QueryDatasets(filters []interface{}) ([]truenas.Dataset, error)
}

// MiddlewareStore reads datasets from middlewared instead of running zfs
// directly, for hosts where the listing runs unprivileged next to the
// TrueNAS middleware.
type MiddlewareStore struct {
	client Querier
}

func NewMiddlewareStore(client Querier) *MiddlewareStore {
	return &MiddlewareStore{client: client}
}

func (s *MiddlewareStore) Children(ctx context.Context, name string) ([]Dataset, error) {
	if err := s.exists(name); err != nil {
		return nil, err
	}

	rows, err := s.client.QueryDatasets([]interface{}{
		[]interface{}{"id", "^", name + "/"},
	})
	if err != nil {
		return nil, fmt.Errorf("query children of %s: %w", name, err)
	}

	var children []Dataset
	for _, row := range rows {
		rest := strings.TrimPrefix(row.ID, name+"/")
		if rest == row.ID || rest == "" || strings.Contains(rest, "/") {
			continue
		}
		children = append(children, Dataset{Name: row.ID, Mountpoint: row.Mountpoint})
	}
	return children, nil
}

func (s *MiddlewareStore) Property(ctx context.Context, name, property string) (string, error) {
	row, err := s.one(name)
	if err != nil {
		return "", err
	}

	switch property {
	case "mountpoint":
		return row.Mountpoint, nil
	case "origin":
		if row.Origin == nil || row.Origin.Value == "-" {
			return "", nil
		}
		return row.Origin.Value, nil
	}
	return "", fmt.Errorf("property %q is not served by the middleware store", property)
}

func (s *MiddlewareStore) exists(name string) error {
	_, err := s.one(name)
	return err
}

func (s *MiddlewareStore) one(name string) (truenas.Dataset, error) {
	rows, err := s.client.QueryDatasets([]interface{}{
		[]interface{}{"id", "=", name},
	})
	if err != nil {
		return truenas.Dataset{}, fmt.Errorf("query %s: %w", name, err)
	}
	if len(rows) == 0 {
		return truenas.Dataset{}, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return rows[0], nil
}
