package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

//go:embed data/vendors.json
var embeddedDataset []byte

// ErrVendorNotFound is returned by ByID when no vendor carries the given id.
var ErrVendorNotFound = fmt.Errorf("vendor not found")

// Catalog is the loaded-once, read-only vendor collection. It is safe for
// concurrent readers since nothing writes after load.
type Catalog struct {
	vendors *Vendors
	byID    map[string]*Vendor
}

// Load builds a catalog from the embedded dataset.
func Load() (*Catalog, error) {
	return parse(embeddedDataset, "embedded dataset")
}

// LoadFile builds a catalog from a custom dataset file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	return parse(data, path)
}

func parse(data []byte, source string) (*Catalog, error) {
	var items []*Vendor
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parsing catalog %s: %w", source, err)
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("catalog %s contains no vendors", source)
	}

	byID := make(map[string]*Vendor, len(items))
	for _, vendor := range items {
		id := strings.TrimSpace(vendor.ID)
		if id == "" {
			return nil, fmt.Errorf("catalog %s: vendor %q has no id", source, vendor.Name)
		}
		if _, exists := byID[id]; exists {
			return nil, fmt.Errorf("catalog %s: duplicate vendor id %q", source, id)
		}
		byID[id] = vendor
	}

	return &Catalog{
		vendors: &Vendors{Items: items},
		byID:    byID,
	}, nil
}

// Vendors returns the full list in catalog order. Callers must treat the
// returned records as read-only.
func (c *Catalog) Vendors() *Vendors {
	return c.vendors.Clone()
}

func (c *Catalog) Len() int {
	return c.vendors.Len()
}

// ByID returns the vendor with the given id or ErrVendorNotFound.
func (c *Catalog) ByID(id string) (*Vendor, error) {
	vendor, ok := c.byID[strings.TrimSpace(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrVendorNotFound, id)
	}
	return vendor, nil
}

// BySegment returns vendors targeting the given segment, in catalog order.
func (c *Catalog) BySegment(segment Segment) *Vendors {
	matched := &Vendors{}
	for _, vendor := range c.vendors.Items {
		if vendor.TargetsSegment(segment) {
			matched.Items = append(matched.Items, vendor)
		}
	}
	return matched
}
