package domain

import (
	"fmt"
	"strings"
)

// ValidateCoordinate checks WGS84 bounds.
func ValidateCoordinate(c Coordinate) error {
	if c.Lat < -90 || c.Lat > 90 {
		return NewValidationError("lat", fmt.Sprintf("%g", c.Lat), ErrInvalidCoordinate)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return NewValidationError("lon", fmt.Sprintf("%g", c.Lon), ErrInvalidCoordinate)
	}
	return nil
}

// ValidateScraped converts a raw scraped record into a strict Outlet.
// Records with no name, no address, or no stable source ID are rejected.
// Out-of-range coordinates are rejected rather than nulled so the caller can
// quarantine the record; missing coordinates are allowed and the outlet is
// simply excluded from catchment pairing downstream.
func ValidateScraped(raw ScrapedOutlet) (Outlet, error) {
	if strings.TrimSpace(raw.SourceID) == "" {
		return Outlet{}, NewValidationError("source_id", raw.SourceID, ErrInvalidOutlet)
	}
	if strings.TrimSpace(raw.Name) == "" {
		return Outlet{}, NewValidationError("name", raw.Name, ErrInvalidOutlet)
	}
	if strings.TrimSpace(raw.Address) == "" {
		return Outlet{}, NewValidationError("address", raw.Address, ErrInvalidOutlet)
	}

	if raw.Latitude != nil || raw.Longitude != nil {
		if raw.Latitude == nil || raw.Longitude == nil {
			return Outlet{}, NewValidationError("coordinate", "half-populated", ErrInvalidCoordinate)
		}
		if err := ValidateCoordinate(Coordinate{Lat: *raw.Latitude, Lon: *raw.Longitude}); err != nil {
			return Outlet{}, err
		}
	}

	return Outlet{
		ID:             raw.SourceID,
		Name:           strings.TrimSpace(raw.Name),
		Address:        strings.TrimSpace(raw.Address),
		Phone:          strings.TrimSpace(raw.Phone),
		Fax:            strings.TrimSpace(raw.Fax),
		Latitude:       raw.Latitude,
		Longitude:      raw.Longitude,
		OperatingHours: raw.OperatingHours,
		Services:       raw.Services,
		WazeLink:       raw.WazeLink,
	}, nil
}
