package repository

import (
	"context"
	"fmt"
	"net/http"
	"time"

	nomad "github.com/hashicorp/nomad/api"

	"github.com/kirychukyurii/gridsynapse/internal/config"
	"github.com/kirychukyurii/gridsynapse/internal/model"
	"github.com/kirychukyurii/gridsynapse/internal/util"
)

// NodeLister reads the client nodes of a Nomad datacenter
type NodeLister interface {
	ListNodes(ctx context.Context, datacenter string) ([]model.Node, error)

	// CheckHealth reports whether the cluster is reachable and has a leader
	CheckHealth(ctx context.Context) error
}

// nomadNodeLister implements NodeLister with the Nomad HTTP API
type nomadNodeLister struct {
	client *nomad.Client
}

// NewNomadNodeLister creates a Nomad API client for one cluster
func NewNomadNodeLister(cfg config.NomadConfig) (NodeLister, error) {
	client, err := createNomadClient(cfg)
	if err != nil {
		return nil, err
	}
	return &nomadNodeLister{client: client}, nil
}

// createNomadClient creates a Nomad API client for a cluster
func createNomadClient(cfg config.NomadConfig) (*nomad.Client, error) {
	nomadConfig := nomad.DefaultConfig()
	nomadConfig.Address = cfg.Address

	// Set region if specified (used for API calls)
	if cfg.Region != "" {
		nomadConfig.Region = cfg.Region
	}

	httpClient := &http.Client{
		Timeout: 30 * time.Second,
	}

	// Configure TLS if provided
	if cfg.TLS != nil {
		tlsConfig, err := util.LoadTLSConfig(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS config: %w", err)
		}
		httpClient.Transport = &http.Transport{
			TLSClientConfig: tlsConfig,
		}
	}
	nomadConfig.HttpClient = httpClient

	client, err := nomad.NewClient(nomadConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Nomad client: %w", err)
	}

	return client, nil
}

// ListNodes returns the nodes registered in the given Nomad datacenter
func (l *nomadNodeLister) ListNodes(ctx context.Context, datacenter string) ([]model.Node, error) {
	stubs, _, err := l.client.Nodes().List((&nomad.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}

	result := make([]model.Node, 0, len(stubs))
	for _, n := range stubs {
		if n.Datacenter != datacenter {
			continue
		}
		result = append(result, model.Node{
			ID:                    n.ID,
			Name:                  n.Name,
			Datacenter:            n.Datacenter,
			Drain:                 n.Drain,
			SchedulingEligibility: n.SchedulingEligibility,
			Status:                n.Status,
		})
	}

	return result, nil
}

// CheckHealth checks if Nomad cluster is healthy and reachable
func (l *nomadNodeLister) CheckHealth(_ context.Context) error {
	leader, err := l.client.Status().Leader()
	if err != nil {
		return fmt.Errorf("failed to get leader: %w", err)
	}
	if leader == "" {
		return fmt.Errorf("no leader elected")
	}
	return nil
}
