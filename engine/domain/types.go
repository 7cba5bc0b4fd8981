// Package domain defines core domain types, constants, and validation for the
// outlet engine pipeline. It acts as the validation gate at pipeline entry points.
package domain

import "time"

// CatchmentRadiusKM is the radius within which two outlets are considered to
// compete for the same catchment. The boundary is inclusive.
const CatchmentRadiusKM = 5.0

// Coordinate is a WGS84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Outlet is a validated retail outlet record. The ID is a stable external
// identifier; re-ingestion updates the remaining fields in place.
type Outlet struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Address        string            `json:"address"`
	Phone          string            `json:"phone,omitempty"`
	Fax            string            `json:"fax,omitempty"`
	Latitude       *float64          `json:"latitude"`
	Longitude      *float64          `json:"longitude"`
	OperatingHours map[string]string `json:"operating_hours,omitempty"`
	Services       []string          `json:"services,omitempty"`
	WazeLink       string            `json:"waze_link,omitempty"`
	UpdatedAt      time.Time         `json:"updated_at,omitempty"`
}

// Coordinate returns the outlet's position, or ok=false when either
// coordinate is missing.
func (o Outlet) Coordinate() (Coordinate, bool) {
	if o.Latitude == nil || o.Longitude == nil {
		return Coordinate{}, false
	}
	return Coordinate{Lat: *o.Latitude, Lon: *o.Longitude}, true
}

// ScrapedOutlet is a raw record as emitted by the upstream scraper. Fields are
// loosely typed; ValidateScraped converts it into a strict Outlet or rejects it.
type ScrapedOutlet struct {
	SourceID       string            `json:"source_id"`
	Name           string            `json:"name"`
	Address        string            `json:"address"`
	Phone          string            `json:"phone"`
	Fax            string            `json:"fax"`
	Latitude       *float64          `json:"latitude"`
	Longitude      *float64          `json:"longitude"`
	OperatingHours map[string]string `json:"operating_hours"`
	Services       []string          `json:"services"`
	WazeLink       string            `json:"waze_link"`
}

// CatchmentEdge is an undirected edge between two outlets whose great-circle
// distance is at most CatchmentRadiusKM. Stored once per unordered pair with
// A < B lexicographically.
type CatchmentEdge struct {
	A          string  `json:"a"`
	B          string  `json:"b"`
	DistanceKM float64 `json:"distance_km"`
}

// ScoredOutlet is a single ranked retrieval hit.
type ScoredOutlet struct {
	OutletID string  `json:"outlet_id"`
	Score    float32 `json:"score"`
	Summary  string  `json:"summary,omitempty"`
}

// RetrievalResult is an ordered context set: scores non-increasing by rank,
// ties broken by ascending outlet ID. Relaxed is set when a locality filter
// was dropped because the catchment intersection came up empty.
type RetrievalResult struct {
	Hits    []ScoredOutlet `json:"hits"`
	Relaxed bool           `json:"relaxed"`
}
