package domain

import "math"

// Severity is the ordinal intensity of a derived event.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
)

// EventType names the kind of environmental event a diary can record.
type EventType string

const (
	EventHeatStress      EventType = "heat_stress"
	EventAirQualitySpike EventType = "air_quality_spike"
)

// Classification thresholds. Anomalies are in °C above climatology, PM2.5 in µg/m³.
const (
	HeatStressHighAnomaly     = 1.5
	HeatStressModerateAnomaly = 0.8
	AirQualityHighPM25        = 55
	AirQualityModeratePM25    = 35
)

// RawSignalSnapshot is one region's raw readings at a capture instant, as
// returned by a signal source. Numeric readings are pointers so an absent
// reading can be told apart from a zero one.
type RawSignalSnapshot struct {
	RegionID    string   `json:"region_id"`
	Timestamp   string   `json:"timestamp"`
	SSTC        *float64 `json:"sst_c"`
	SSTClimC    *float64 `json:"sst_clim_c"`
	Chlorophyll *float64 `json:"chlorophyll_mg_m3"`
	PM25        *int     `json:"pm25_ug_m3"`
	Sources     []string `json:"sources"`
}

// FeatureSet holds the derived, rounded features written into a diary.
type FeatureSet struct {
	SSTAnomalyC     float64 `json:"sst_anomaly_c"`
	ChlorophyllMgM3 float64 `json:"chlorophyll_mg_m3"`
	PM25UgM3        int     `json:"pm25_ug_m3"`
}

// Event is a classified occurrence derived from the features.
type Event struct {
	Type     EventType `json:"type"`
	Severity Severity  `json:"severity"`
}

// Ptr returns a pointer to v. Handy for building snapshots in sources and tests.
func Ptr[T any](v T) *T { return &v }

// ClassifyHeatStress maps an SST anomaly to a heat-stress severity.
func ClassifyHeatStress(anomaly float64) Severity {
	switch {
	case anomaly >= HeatStressHighAnomaly:
		return SeverityHigh
	case anomaly >= HeatStressModerateAnomaly:
		return SeverityModerate
	default:
		return SeverityLow
	}
}

// ClassifyAirQuality maps a PM2.5 reading to an air-quality severity.
// The second return value is false when the reading is below the event threshold.
func ClassifyAirQuality(pm25 int) (Severity, bool) {
	switch {
	case pm25 >= AirQualityHighPM25:
		return SeverityHigh, true
	case pm25 >= AirQualityModeratePM25:
		return SeverityModerate, true
	default:
		return "", false
	}
}

// DeriveFeatures converts a raw snapshot into its feature set and the ordered
// event list. Heat stress is classified on the unrounded anomaly; a low
// classification is suppressed. Events are always ordered heat_stress first,
// then air_quality_spike.
func DeriveFeatures(snap RawSignalSnapshot) (FeatureSet, []Event, error) {
	switch {
	case snap.SSTC == nil:
		return FeatureSet{}, nil, &MissingFieldError{Field: "sst_c"}
	case snap.SSTClimC == nil:
		return FeatureSet{}, nil, &MissingFieldError{Field: "sst_clim_c"}
	case snap.Chlorophyll == nil:
		return FeatureSet{}, nil, &MissingFieldError{Field: "chlorophyll_mg_m3"}
	case snap.PM25 == nil:
		return FeatureSet{}, nil, &MissingFieldError{Field: "pm25_ug_m3"}
	}

	anomaly := *snap.SSTC - *snap.SSTClimC
	events := make([]Event, 0, 2)

	if sev := ClassifyHeatStress(anomaly); sev != SeverityLow {
		events = append(events, Event{Type: EventHeatStress, Severity: sev})
	}
	if sev, ok := ClassifyAirQuality(*snap.PM25); ok {
		events = append(events, Event{Type: EventAirQualitySpike, Severity: sev})
	}

	features := FeatureSet{
		SSTAnomalyC:     roundTo(anomaly, 2),
		ChlorophyllMgM3: roundTo(*snap.Chlorophyll, 3),
		PM25UgM3:        *snap.PM25,
	}
	return features, events, nil
}

// roundTo rounds half away from zero to the given number of decimals.
func roundTo(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}
