package truenas

import (
	"encoding/json"
	"fmt"
)

// PropertyValue is the shape middlewared uses for ZFS properties in
// pool.dataset.query results.
type PropertyValue struct {
	Value    string `json:"value"`
	Rawvalue string `json:"rawvalue"`
	Source   string `json:"source"`
}

// Dataset is the subset of a pool.dataset.query row the listing reads.
type Dataset struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Pool       string         `json:"pool"`
	Mountpoint string         `json:"mountpoint"`
	Origin     *PropertyValue `json:"origin,omitempty"`
}

// QueryDatasets runs pool.dataset.query with the given filters. Children
// are not expanded so each row is one dataset.
func (c *Client) QueryDatasets(filters []interface{}) ([]Dataset, error) {
	if filters == nil {
		filters = []interface{}{}
	}
	options := map[string]interface{}{
		"extra": map[string]interface{}{
			"flat":              true,
			"retrieve_children": false,
			"properties":        []string{"mountpoint", "origin"},
		},
	}

	result, err := c.Call("pool.dataset.query", filters, options)
	if err != nil {
		return nil, err
	}

	var datasets []Dataset
	if err := json.Unmarshal(result, &datasets); err != nil {
		return nil, fmt.Errorf("failed to parse datasets: %w", err)
	}
	return datasets, nil
}
