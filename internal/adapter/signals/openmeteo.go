package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/couchcryptid/gaia-diary-service/internal/domain"
)

// Provenance tags recorded in a snapshot's sources.
const (
	SourceOpenMeteoMarine = "open-meteo:marine:sea_surface_temperature"
	SourceOpenMeteoAir    = "open-meteo:air-quality:pm2_5"
	SourceCatalogBaseline = "catalog:climatology"
)

// OpenMeteo reads current sea surface temperature and PM2.5 from the
// Open-Meteo marine and air-quality APIs. Climatology and chlorophyll come
// from the region catalog baselines. Land regions have no SST reading, which
// the deriver reports as a missing sst_c.
type OpenMeteo struct {
	catalog    *domain.Catalog
	httpClient *http.Client
	marineURL  string
	airURL     string
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewOpenMeteo creates an Open-Meteo source.
func NewOpenMeteo(catalog *domain.Catalog, marineURL, airURL string, timeout time.Duration, logger *slog.Logger) *OpenMeteo {
	return &OpenMeteo{
		catalog: catalog,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		marineURL: strings.TrimSuffix(marineURL, "/"),
		airURL:    strings.TrimSuffix(airURL, "/"),
		clock:     clockwork.NewRealClock(),
		logger:    logger,
	}
}

// Fetch queries both APIs for the region's coordinates.
func (o *OpenMeteo) Fetch(ctx context.Context, regionID string) (domain.RawSignalSnapshot, error) {
	region, err := o.catalog.Resolve(regionID)
	if err != nil {
		return domain.RawSignalSnapshot{}, err
	}

	var marine marineResponse
	if err := o.get(ctx, o.marineURL+"/v1/marine", region, "sea_surface_temperature", &marine); err != nil {
		return domain.RawSignalSnapshot{}, err
	}
	var air airResponse
	if err := o.get(ctx, o.airURL+"/v1/air-quality", region, "pm2_5", &air); err != nil {
		return domain.RawSignalSnapshot{}, err
	}

	snap := domain.RawSignalSnapshot{
		RegionID:    region.ID,
		Timestamp:   domain.Now(o.clock),
		SSTC:        marine.Current.SeaSurfaceTemperature,
		SSTClimC:    domain.Ptr(region.SSTClimC),
		Chlorophyll: domain.Ptr(math.Max(0.05, region.ChlorophyllMgM3)),
		Sources:     []string{SourceOpenMeteoMarine, SourceOpenMeteoAir, SourceCatalogBaseline},
	}
	if air.Current.PM25 != nil {
		snap.PM25 = domain.Ptr(max(1, int(math.Round(*air.Current.PM25))))
	}
	if snap.SSTC == nil {
		o.logger.Warn("no sea surface temperature for region", "region_id", region.ID, "category", region.Category)
	}
	return snap, nil
}

func (o *OpenMeteo) get(ctx context.Context, endpoint string, region domain.Region, variable string, out any) error {
	params := url.Values{
		"latitude":  {strconv.FormatFloat(region.Lat, 'f', 4, 64)},
		"longitude": {strconv.FormatFloat(region.Lon, 'f', 4, 64)},
		"current":   {variable},
		"timezone":  {"GMT"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s request: %v", domain.ErrSourceUnavailable, variable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: open-meteo API error: status %d: %s", domain.ErrSourceUnavailable, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", domain.ErrSourceUnavailable, variable, err)
	}
	return nil
}

// Open-Meteo API response types.

type marineResponse struct {
	Current struct {
		Time                  string   `json:"time"`
		SeaSurfaceTemperature *float64 `json:"sea_surface_temperature"`
	} `json:"current"`
}

type airResponse struct {
	Current struct {
		Time string   `json:"time"`
		PM25 *float64 `json:"pm2_5"`
	} `json:"current"`
}
