// Package outlets implements the outlet record store on Neo4j. Outlets are
// nodes; the catchment builder owns the NEAR relationships between them.
// This package never writes derived artifacts, and the derived stores never
// write outlet attributes.
package outlets

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"github.com/syahrilshahiran/mindhive-engine/engine/domain"
	"github.com/syahrilshahiran/mindhive-engine/pkg/repo"
)

const pageSize = 500

// Store reads and writes Outlet nodes.
type Store struct {
	outlets *repo.Neo4jRepo[domain.Outlet, string]
}

// New creates a Store on the given driver.
func New(driver neo4j.DriverWithContext) *Store {
	return &Store{
		outlets: repo.NewNeo4jRepo[domain.Outlet, string](driver, "Outlet", outletToMap, outletFromRecord),
	}
}

// Get returns one outlet, or domain.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (domain.Outlet, error) {
	o, err := s.outlets.Get(ctx, id)
	var nf repo.ErrNotFound
	if errors.As(err, &nf) {
		return domain.Outlet{}, domain.ErrNotFound
	}
	return o, err
}

// GetAll pages through every outlet node.
func (s *Store) GetAll(ctx context.Context) ([]domain.Outlet, error) {
	var all []domain.Outlet
	for offset := 0; ; offset += pageSize {
		page, err := s.outlets.List(ctx, repo.ListOpts{Offset: offset, Limit: pageSize})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

// Upsert merges an outlet keyed by its stable external ID. Re-ingestion
// updates fields in place; outlets are never deleted.
func (s *Store) Upsert(ctx context.Context, o domain.Outlet) error {
	return s.outlets.Upsert(ctx, o)
}

// outletToMap flattens an Outlet into node properties. Operating hours are a
// nested map, which Neo4j properties cannot hold, so they travel as JSON.
func outletToMap(o domain.Outlet) map[string]any {
	m := map[string]any{
		"id":      o.ID,
		"name":    o.Name,
		"address": o.Address,
	}
	if o.Phone != "" {
		m["phone"] = o.Phone
	}
	if o.Fax != "" {
		m["fax"] = o.Fax
	}
	if o.Latitude != nil {
		m["latitude"] = *o.Latitude
	}
	if o.Longitude != nil {
		m["longitude"] = *o.Longitude
	}
	if len(o.Services) > 0 {
		services := make([]any, len(o.Services))
		for i, s := range o.Services {
			services[i] = s
		}
		m["services"] = services
	}
	if o.WazeLink != "" {
		m["waze_link"] = o.WazeLink
	}
	if len(o.OperatingHours) > 0 {
		if raw, err := json.Marshal(o.OperatingHours); err == nil {
			m["operating_hours"] = string(raw)
		}
	}
	return m
}

func outletFromRecord(rec *neo4j.Record) (domain.Outlet, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
	if err != nil {
		return domain.Outlet{}, err
	}
	return outletFromProps(node.Props), nil
}

func outletFromProps(props map[string]any) domain.Outlet {
	o := domain.Outlet{
		ID:       strProp(props, "id"),
		Name:     strProp(props, "name"),
		Address:  strProp(props, "address"),
		Phone:    strProp(props, "phone"),
		Fax:      strProp(props, "fax"),
		WazeLink: strProp(props, "waze_link"),
	}
	if v, ok := props["latitude"].(float64); ok {
		o.Latitude = &v
	}
	if v, ok := props["longitude"].(float64); ok {
		o.Longitude = &v
	}
	if vs, ok := props["services"].([]any); ok {
		for _, v := range vs {
			if s, ok := v.(string); ok {
				o.Services = append(o.Services, s)
			}
		}
	}
	if raw := strProp(props, "operating_hours"); raw != "" {
		var hours map[string]string
		if err := json.Unmarshal([]byte(raw), &hours); err == nil {
			o.OperatingHours = hours
		}
	}
	return o
}

func strProp(props map[string]any, key string) string {
	if s, ok := props[key].(string); ok {
		return s
	}
	return ""
}
