// Package signals provides the raw signal sources the diary stage reads from.
package signals

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/gaia-diary-service/internal/domain"
)

// Synthetic generates plausible placeholder readings around a region's
// baselines. It stands in for real acquisition in development and demos.
type Synthetic struct {
	catalog *domain.Catalog
	clock   clockwork.Clock

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSynthetic creates a synthetic source. Equal seeds produce equal
// reading sequences.
func NewSynthetic(catalog *domain.Catalog, clock clockwork.Clock, seed uint64) *Synthetic {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Synthetic{
		catalog: catalog,
		clock:   clock,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Fetch returns a fresh reading: SST around 28.0°C, chlorophyll around the
// region baseline (floored at 0.05), PM2.5 skewed high (floored at 1).
func (s *Synthetic) Fetch(_ context.Context, regionID string) (domain.RawSignalSnapshot, error) {
	region, err := s.catalog.Resolve(regionID)
	if err != nil {
		return domain.RawSignalSnapshot{}, err
	}

	s.mu.Lock()
	sst := 28.0 + s.uniform(-0.5, 1.8)
	chl := math.Max(0.05, region.ChlorophyllMgM3+s.uniform(-0.2, 0.2))
	pm25 := max(1, 10+int(s.uniform(-3, 40)))
	s.mu.Unlock()

	return domain.RawSignalSnapshot{
		RegionID:    region.ID,
		Timestamp:   domain.Now(s.clock),
		SSTC:        domain.Ptr(sst),
		SSTClimC:    domain.Ptr(region.SSTClimC),
		Chlorophyll: domain.Ptr(chl),
		PM25:        domain.Ptr(pm25),
		Sources:     []string{"placeholder_sst", "placeholder_chl", "placeholder_pm25"},
	}, nil
}

func (s *Synthetic) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}
