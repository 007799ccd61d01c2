package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/couchcryptid/gaia-diary-service/internal/domain"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// catalogEnvPrefix lets a deployment override catalog scalars without editing
// the file, e.g. GAIA_CATALOG_DEFAULT_REGION=great_barrier_reef.
const catalogEnvPrefix = "GAIA_CATALOG_"

// RegionCatalog is the loaded region catalog plus the region used when an
// invocation omits one.
type RegionCatalog struct {
	DefaultRegion string          `koanf:"default_region"`
	Regions       []domain.Region `koanf:"regions"`
}

// BuiltinRegions is the catalog used when no REGIONS_FILE is configured.
var BuiltinRegions = []domain.Region{
	{ID: "amazon_basin", Name: "Amazon Basin", Category: "forest", Lat: -3.4, Lon: -62.0},
	{ID: "amazon_rainforest", Name: "Amazon Rainforest", Category: "forest", Lat: -3.4, Lon: -62.0},
	{ID: "andes_mountains", Name: "Andes Mountains", Category: "mountain", Lat: -13.16, Lon: -72.54},
	{ID: "antarctica_coast", Name: "Antarctica Coast", Category: "ice", Lat: -70.0, Lon: 0.0},
	{ID: "arabian_desert", Name: "Arabian Desert", Category: "desert", Lat: 23.42, Lon: 45.08},
	{ID: "arctic_circle", Name: "Arctic Circle", Category: "ice", Lat: 66.5, Lon: 0},
	{ID: "bay_of_bengal", Name: "Bay of Bengal", Category: "ocean", Lat: 15.0, Lon: 88.0},
	{ID: "beijing", Name: "Beijing", Category: "city", Lat: 39.9, Lon: 116.4},
	{ID: "borneo_rainforest", Name: "Borneo Rainforest", Category: "forest", Lat: 0.5, Lon: 114.0},
	{ID: "reef_sumatra", Name: "Coral Reef — Sumatra", Category: "reef", Lat: -0.5, Lon: 100.0},
	{ID: "congo_basin", Name: "Congo Basin", Category: "forest", Lat: -0.5, Lon: 22.0},
	{ID: "delhi_india", Name: "Delhi (India)", Category: "city", Lat: 28.6, Lon: 77.2},
	{ID: "gobi_desert", Name: "Gobi Desert", Category: "desert", Lat: 42.5, Lon: 103.5},
	{ID: "great_barrier_reef", Name: "Great Barrier Reef", Category: "reef", Lat: -18.28, Lon: 147.69},
	{ID: "greenland_ice_sheet", Name: "Greenland Ice Sheet", Category: "ice", Lat: 72.0, Lon: -40.0},
	{ID: "gulf_of_mexico", Name: "Gulf of Mexico", Category: "ocean", Lat: 25.0, Lon: -90.0},
	{ID: "himalayas", Name: "Himalayas", Category: "mountain", Lat: 28.0, Lon: 84.0},
	{ID: "los_angeles", Name: "Los Angeles", Category: "city", Lat: 34.05, Lon: -118.24},
	{ID: "maldives_atolls", Name: "Maldives Atolls", Category: "reef", Lat: 3.2, Lon: 73.0},
	{ID: "new_york_city", Name: "New York City", Category: "city", Lat: 40.71, Lon: -74.0},
	{ID: "philippines_archipelago", Name: "Philippines Archipelago", Category: "ocean", Lat: 12.88, Lon: 121.77},
	{ID: "sahara_desert", Name: "Sahara Desert", Category: "desert", Lat: 23.8, Lon: 0},
	{ID: "tokyo_japan", Name: "Tokyo (Japan)", Category: "city", Lat: 35.68, Lon: 139.65},
}

// LoadRegions loads the region catalog from a YAML file, falling back to
// BuiltinRegions when path is empty or the file does not exist. Scalar keys
// can be overridden with GAIA_CATALOG_* environment variables.
func LoadRegions(path, defaultRegion string) (*domain.Catalog, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("load regions file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(catalogEnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, catalogEnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("load catalog env: %w", err)
	}

	if !k.Exists("default_region") {
		k.Set("default_region", defaultRegion) //nolint:errcheck // in-memory set
	}

	var rc RegionCatalog
	if err := k.Unmarshal("", &rc); err != nil {
		return nil, fmt.Errorf("decode regions: %w", err)
	}
	if len(rc.Regions) == 0 {
		rc.Regions = BuiltinRegions
	}

	catalog, err := domain.NewCatalog(rc.Regions, rc.DefaultRegion)
	if err != nil {
		return nil, fmt.Errorf("build region catalog: %w", err)
	}
	if _, ok := catalog.Lookup(catalog.DefaultID()); !ok {
		return nil, fmt.Errorf("default region %q is not in the catalog", catalog.DefaultID())
	}
	return catalog, nil
}
