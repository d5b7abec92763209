package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"github.com/kirychukyurii/gridsynapse/internal/concurrent"
	"github.com/kirychukyurii/gridsynapse/internal/config"
	"github.com/kirychukyurii/gridsynapse/internal/model"
)

// ConfigSource serves datacenter profiles from configuration. Datacenters
// with a nomad block get their capacity from the ready nodes of that Nomad
// datacenter on every call.
type ConfigSource struct {
	datacenters []config.DatacenterConfig
	listers     map[string]NodeLister // keyed by datacenter id
	logger      *slog.Logger
}

// NewConfigSource creates a source and a Nomad client per Nomad backed datacenter
func NewConfigSource(datacenters []config.DatacenterConfig, logger *slog.Logger) (*ConfigSource, error) {
	listers := make(map[string]NodeLister)
	for _, dc := range datacenters {
		if dc.Nomad == nil {
			continue
		}
		lister, err := NewNomadNodeLister(*dc.Nomad)
		if err != nil {
			return nil, fmt.Errorf("failed to create nomad client for datacenter %s: %w", dc.ID, err)
		}
		listers[dc.ID] = lister

		logger.Info("datacenter capacity backed by nomad",
			slog.String("datacenter", dc.ID),
			slog.String("address", dc.Nomad.Address),
		)
	}

	return NewConfigSourceWithListers(datacenters, listers, logger), nil
}

// NewConfigSourceWithListers creates a source with prebuilt node listers
func NewConfigSourceWithListers(datacenters []config.DatacenterConfig, listers map[string]NodeLister, logger *slog.Logger) *ConfigSource {
	return &ConfigSource{
		datacenters: datacenters,
		listers:     listers,
		logger:      logger,
	}
}

// ListDatacenters implements DatacenterSource. Datacenters whose capacity
// lookup fails are left out; an error is returned only if none remain.
func (s *ConfigSource) ListDatacenters(ctx context.Context) ([]model.Datacenter, error) {
	results := concurrent.Map(ctx, s.datacenters, 0, s.resolve)

	datacenters := make([]model.Datacenter, 0, len(results))
	var errs *multierror.Error
	for _, r := range results {
		if r.Err != nil {
			s.logger.Warn("excluding datacenter",
				slog.String("datacenter", s.datacenters[r.Index].ID),
				slog.String("error", r.Err.Error()),
			)
			errs = multierror.Append(errs, r.Err)
			continue
		}
		datacenters = append(datacenters, r.Value)
	}

	if len(datacenters) == 0 && errs != nil {
		return nil, fmt.Errorf("failed to resolve any datacenter: %w", errs)
	}

	return datacenters, nil
}

func (s *ConfigSource) resolve(ctx context.Context, dc config.DatacenterConfig) (model.Datacenter, error) {
	result := model.Datacenter{
		ID:              dc.ID,
		CapacityUnits:   dc.CapacityUnits,
		Location:        dc.Location,
		Prices:          append([]float64(nil), dc.Prices...),
		CarbonIntensity: append([]float64(nil), dc.CarbonIntensity...),
	}

	lister, ok := s.listers[dc.ID]
	if !ok || dc.Nomad == nil {
		return result, nil
	}

	name := dc.Nomad.Datacenter
	if name == "" {
		name = dc.ID
	}

	nodes, err := lister.ListNodes(ctx, name)
	if err != nil {
		return model.Datacenter{}, fmt.Errorf("datacenter %s: %w", dc.ID, err)
	}

	ready := 0
	for i := range nodes {
		if nodes[i].IsReady() {
			ready++
		}
	}
	result.CapacityUnits = ready * dc.Nomad.UnitsPerNode

	s.logger.Debug("resolved datacenter capacity",
		slog.String("datacenter", dc.ID),
		slog.Int("nodes", len(nodes)),
		slog.Int("ready_nodes", ready),
		slog.Int("capacity_units", result.CapacityUnits),
	)

	return result, nil
}

// CheckHealth reports the reachability of every Nomad cluster, keyed by datacenter id
func (s *ConfigSource) CheckHealth(ctx context.Context) map[string]error {
	ids := make([]string, 0, len(s.listers))
	for id := range s.listers {
		ids = append(ids, id)
	}

	results := concurrent.Map(ctx, ids, 0, func(ctx context.Context, id string) (struct{}, error) {
		return struct{}{}, s.listers[id].CheckHealth(ctx)
	})

	health := make(map[string]error, len(ids))
	for _, r := range results {
		health[ids[r.Index]] = r.Err
	}
	return health
}
