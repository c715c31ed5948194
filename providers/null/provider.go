// Package null implements a provider that manages nothing. It exists for
// engine tests and for wiring experiments: resources "converge" instantly
// and their attributes echo back as computed outputs.
package null

import (
	"context"
	"fmt"
	"sync"

	"github.com/picket-io/picket/internal/provider"
)

const ResourceType = "null:Resource"

type Provider struct {
	mu     sync.Mutex
	nextID int
	alive  map[string]map[string]any
}

func New() *Provider {
	return &Provider{alive: make(map[string]map[string]any)}
}

func Factory(settings map[string]string) (provider.Provider, error) {
	return New(), nil
}

func (p *Provider) Schema(resourceType string) (*provider.Schema, error) {
	if resourceType != ResourceType {
		return nil, fmt.Errorf("null provider does not manage %s", resourceType)
	}
	return &provider.Schema{
		Attributes: map[string]provider.AttrType{
			"triggers": provider.TypeMap,
			"value":    provider.TypeString,
		},
	}, nil
}

func (p *Provider) Create(ctx context.Context, req *provider.CreateRequest) (*provider.CreateResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	id := fmt.Sprintf("null-%s-%d", req.Name, p.nextID)
	computed := echo(req.Attributes)
	computed["id"] = id
	p.alive[id] = computed

	return &provider.CreateResponse{ProviderID: id, Computed: computed}, nil
}

func (p *Provider) Update(ctx context.Context, req *provider.UpdateRequest) (*provider.UpdateResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	computed := echo(req.Attributes)
	computed["id"] = req.ProviderID
	p.alive[req.ProviderID] = computed

	return &provider.UpdateResponse{Computed: computed}, nil
}

func (p *Provider) Destroy(ctx context.Context, req *provider.DestroyRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.alive, req.ProviderID)
	return nil
}

func (p *Provider) Get(ctx context.Context, req *provider.GetRequest) (*provider.GetResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	computed, ok := p.alive[req.ProviderID]
	if !ok {
		return nil, provider.ErrNotFound
	}
	return &provider.GetResponse{Computed: computed}, nil
}

func echo(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs)+1)
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
