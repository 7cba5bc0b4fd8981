package outlets

import (
	"testing"

	"github.com/syahrilshahiran/mindhive-engine/engine/domain"
)

func f64(v float64) *float64 { return &v }

func TestOutletRoundTrip(t *testing.T) {
	in := domain.Outlet{
		ID:        "mcd-klcc",
		Name:      "McDonald's KLCC",
		Address:   "Lot 151, KLCC, Kuala Lumpur",
		Phone:     "03-1234567",
		Latitude:  f64(3.1390),
		Longitude: f64(101.6869),
		Services:  []string{"24 Hours", "McCafe"},
		OperatingHours: map[string]string{
			"mon": "00:00-24:00",
		},
		WazeLink: "https://waze.com/ul/x",
	}

	out := outletFromProps(outletToMap(in))
	if out.ID != in.ID || out.Name != in.Name || out.Address != in.Address {
		t.Fatalf("identity fields lost: %+v", out)
	}
	if out.Latitude == nil || *out.Latitude != 3.1390 {
		t.Fatalf("latitude = %v", out.Latitude)
	}
	if len(out.Services) != 2 || out.Services[1] != "McCafe" {
		t.Fatalf("services = %v", out.Services)
	}
	if out.OperatingHours["mon"] != "00:00-24:00" {
		t.Fatalf("operating hours = %v", out.OperatingHours)
	}
}

func TestOutletToMap_OmitsMissingCoordinates(t *testing.T) {
	m := outletToMap(domain.Outlet{ID: "x", Name: "n", Address: "a"})
	if _, ok := m["latitude"]; ok {
		t.Fatal("latitude should be absent for non-geocoded outlet")
	}
	if _, ok := m["longitude"]; ok {
		t.Fatal("longitude should be absent for non-geocoded outlet")
	}
}
