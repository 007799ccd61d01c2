package domain

import (
	"slices"
	"strings"
)

// DefaultRegionID is used when an invocation does not name a region.
const DefaultRegionID = "reef_sumatra"

// Default baselines applied when a catalog entry leaves them unset.
const (
	DefaultSSTClimC        = 27.2
	DefaultChlorophyllMgM3 = 0.3
)

// Region is a named geographic area the pipeline can keep a diary for.
type Region struct {
	ID              string  `koanf:"id" json:"id"`
	Name            string  `koanf:"name" json:"name"`
	Category        string  `koanf:"category" json:"category,omitempty"`
	Lat             float64 `koanf:"lat" json:"lat"`
	Lon             float64 `koanf:"lon" json:"lon"`
	SSTClimC        float64 `koanf:"sst_clim_c" json:"sst_clim_c"`
	ChlorophyllMgM3 float64 `koanf:"chlorophyll_mg_m3" json:"chlorophyll_mg_m3"`
}

// Catalog is an immutable, id-sorted set of regions.
type Catalog struct {
	regions   []Region
	byID      map[string]Region
	defaultID string
}

// NewCatalog builds a catalog, filling default baselines and rejecting blank
// or duplicate ids. An empty defaultID selects DefaultRegionID.
func NewCatalog(regions []Region, defaultID string) (*Catalog, error) {
	if defaultID == "" {
		defaultID = DefaultRegionID
	}
	c := &Catalog{byID: make(map[string]Region, len(regions)), defaultID: defaultID}
	for _, r := range regions {
		r.ID = strings.TrimSpace(r.ID)
		if r.ID == "" {
			return nil, &MissingFieldError{Field: "region.id"}
		}
		if _, dup := c.byID[r.ID]; dup {
			return nil, &InvalidFieldError{Field: "region.id", Reason: "duplicate region " + r.ID}
		}
		if r.Name == "" {
			r.Name = r.ID
		}
		if r.SSTClimC == 0 {
			r.SSTClimC = DefaultSSTClimC
		}
		if r.ChlorophyllMgM3 == 0 {
			r.ChlorophyllMgM3 = DefaultChlorophyllMgM3
		}
		c.byID[r.ID] = r
		c.regions = append(c.regions, r)
	}
	slices.SortFunc(c.regions, func(a, b Region) int { return strings.Compare(a.ID, b.ID) })
	return c, nil
}

// Lookup returns the region with the given id.
func (c *Catalog) Lookup(id string) (Region, bool) {
	r, ok := c.byID[id]
	return r, ok
}

// DefaultID returns the id used when an invocation names no region.
func (c *Catalog) DefaultID() string { return c.defaultID }

// Resolve returns the named region, or the default region when id is empty.
// Unknown ids fail with InvalidFieldError.
func (c *Catalog) Resolve(id string) (Region, error) {
	if id == "" {
		id = c.defaultID
	}
	r, ok := c.byID[id]
	if !ok {
		return Region{}, &InvalidFieldError{Field: "region_id", Reason: "unknown region " + id}
	}
	return r, nil
}

// Regions returns the catalog's regions sorted by id.
func (c *Catalog) Regions() []Region {
	return slices.Clone(c.regions)
}

// IDs returns every region id, sorted.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.regions))
	for i, r := range c.regions {
		ids[i] = r.ID
	}
	return ids
}
