package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirychukyurii/gridsynapse/internal/config"
	"github.com/kirychukyurii/gridsynapse/internal/model"
)

type fakeNodeLister struct {
	nodes     map[string][]model.Node
	err       error
	healthErr error
	queried   []string
}

func (f *fakeNodeLister) ListNodes(_ context.Context, datacenter string) ([]model.Node, error) {
	f.queried = append(f.queried, datacenter)
	if f.err != nil {
		return nil, f.err
	}
	return f.nodes[datacenter], nil
}

func (f *fakeNodeLister) CheckHealth(_ context.Context) error {
	return f.healthErr
}

func staticDatacenter(id string, capacity int) config.DatacenterConfig {
	return config.DatacenterConfig{
		ID:              id,
		Location:        "Oregon",
		CapacityUnits:   capacity,
		Prices:          []float64{0.1, 0.2},
		CarbonIntensity: []float64{50, 60},
	}
}

func TestConfigSourceStatic(t *testing.T) {
	cfg := []config.DatacenterConfig{staticDatacenter("a", 100), staticDatacenter("b", 200)}
	source := NewConfigSourceWithListers(cfg, nil, testLogger())

	dcs, err := source.ListDatacenters(context.Background())
	require.NoError(t, err)
	require.Len(t, dcs, 2)
	assert.Equal(t, "a", dcs[0].ID)
	assert.Equal(t, 200, dcs[1].CapacityUnits)
	assert.Equal(t, "Oregon", dcs[0].Location)

	// the returned profile does not alias configuration
	dcs[0].Prices[0] = 99
	assert.Equal(t, 0.1, cfg[0].Prices[0])
}

func TestConfigSourceNomadCapacity(t *testing.T) {
	dc := staticDatacenter("us-west-2a", 0)
	dc.Nomad = &config.NomadConfig{Address: "http://nomad:4646", Datacenter: "dc1", UnitsPerNode: 16}

	lister := &fakeNodeLister{nodes: map[string][]model.Node{
		"dc1": {
			{ID: "1", Status: "ready", SchedulingEligibility: "eligible"},
			{ID: "2", Status: "ready", SchedulingEligibility: "eligible"},
			{ID: "3", Status: "ready", SchedulingEligibility: "eligible", Drain: true},
			{ID: "4", Status: "ready", SchedulingEligibility: "ineligible"},
			{ID: "5", Status: "down", SchedulingEligibility: "eligible"},
		},
	}}
	source := NewConfigSourceWithListers([]config.DatacenterConfig{dc}, map[string]NodeLister{dc.ID: lister}, testLogger())

	dcs, err := source.ListDatacenters(context.Background())
	require.NoError(t, err)
	require.Len(t, dcs, 1)
	assert.Equal(t, 32, dcs[0].CapacityUnits)
	assert.Equal(t, []string{"dc1"}, lister.queried)
}

func TestConfigSourceNomadDatacenterDefaultsToID(t *testing.T) {
	dc := staticDatacenter("us-east-1a", 0)
	dc.Nomad = &config.NomadConfig{Address: "http://nomad:4646", UnitsPerNode: 1}

	lister := &fakeNodeLister{}
	source := NewConfigSourceWithListers([]config.DatacenterConfig{dc}, map[string]NodeLister{dc.ID: lister}, testLogger())

	_, err := source.ListDatacenters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"us-east-1a"}, lister.queried)
}

func TestConfigSourceExcludesFailedDatacenters(t *testing.T) {
	broken := staticDatacenter("broken", 0)
	broken.Nomad = &config.NomadConfig{Address: "http://nomad:4646", UnitsPerNode: 4}
	listers := map[string]NodeLister{"broken": &fakeNodeLister{err: errors.New("connection refused")}}

	source := NewConfigSourceWithListers([]config.DatacenterConfig{staticDatacenter("ok", 50), broken}, listers, testLogger())
	dcs, err := source.ListDatacenters(context.Background())
	require.NoError(t, err)
	require.Len(t, dcs, 1)
	assert.Equal(t, "ok", dcs[0].ID)

	source = NewConfigSourceWithListers([]config.DatacenterConfig{broken}, listers, testLogger())
	_, err = source.ListDatacenters(context.Background())
	assert.ErrorContains(t, err, "connection refused")
}

func TestConfigSourceCheckHealth(t *testing.T) {
	listers := map[string]NodeLister{
		"a": &fakeNodeLister{},
		"b": &fakeNodeLister{healthErr: errors.New("no leader elected")},
	}
	source := NewConfigSourceWithListers(nil, listers, testLogger())

	health := source.CheckHealth(context.Background())
	require.Len(t, health, 2)
	assert.NoError(t, health["a"])
	assert.EqualError(t, health["b"], "no leader elected")
}
