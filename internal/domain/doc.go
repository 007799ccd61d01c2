// Package domain models environmental diary and narrative records.
//
// # Signals
//
// A signal source returns one [RawSignalSnapshot] per region and invocation:
//
//	sst_c              sea-surface temperature, °C
//	sst_clim_c         climatological SST baseline for the region, °C
//	chlorophyll_mg_m3  chlorophyll-a concentration, floored at 0.05 by sources
//	pm25_ug_m3         particulate matter ≤2.5µm, integer, floored at 1 by sources
//	sources            provenance tags, e.g. "placeholder_sst"
//
// # Derivation
//
// [DeriveFeatures] is pure. The SST anomaly is sst_c − sst_clim_c and drives
// heat-stress classification; PM2.5 drives air-quality classification
// independently:
//
//	heat_stress:        anomaly ≥ 1.5 high | ≥ 0.8 moderate | otherwise low (no event)
//	air_quality_spike:  PM2.5 ≥ 55 high    | ≥ 35 moderate  | otherwise no event
//
// Events are ordered heat_stress then air_quality_spike. Features are rounded
// for storage: anomaly to 2 decimals, chlorophyll to 3, PM2.5 passes through.
//
// # Records and Keys
//
// A [DiaryRecord] is written once under
//
//	<prefix>/<region_id>/<timestamp with ':' and '.' replaced by '-'>.json
//
// e.g. diary/reef_sumatra/2025-10-12T05-41-23-299611Z.json. Its narrative and
// confidence stay null. The generated narration lives in a separate
// [NarrativeRecord] whose key replaces the trailing ".json" with
// "-narrative.json".
//
// # Confidence
//
// [ScoreConfidence] takes the highest severity score among the diary's events
// (high 0.9, moderate 0.8, low or unknown 0.7). A diary without events scores
// 0.85.
//
// # Errors
//
// Validation failures are typed ([MissingFieldError], [InvalidFieldError],
// [MissingContextError], [EmptyGenerationError]). External failures are
// wrapped around sentinels such as [ErrSourceUnavailable]. [Kind] and
// [IsRetryable] classify either for orchestrators.
package domain
