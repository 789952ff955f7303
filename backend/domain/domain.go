// Package domain declares the transformation domains the orchestrator can
// run conversations for. A domain is selected once at session start and
// supplies the phase requirements for that session's whole lifetime.
package domain

import (
	"strings"

	"github.com/intentlabs/transformd/backend/flow"
	"github.com/intentlabs/transformd/backend/phase"
)

// Domain describes one kind of transformation (framework migration,
// language conversion, ...) and the information a conversation about it
// must collect per phase.
type Domain struct {
	Name         string
	Description  string
	Keywords     []string
	Requirements map[phase.Phase][]flow.Requirement

	registry *flow.Registry
}

// Registry returns the domain's phase requirement registry.
func (d *Domain) Registry() *flow.Registry {
	return d.registry
}

// Catalog holds the registered domains in registration order. The first
// domain is the fallback when detection finds no keyword match.
type Catalog struct {
	domains []*Domain
}

// NewCatalog validates and registers the given domains.
func NewCatalog(domains ...*Domain) (*Catalog, error) {
	for _, d := range domains {
		reg, err := flow.NewRegistry(d.Requirements)
		if err != nil {
			return nil, err
		}
		d.registry = reg
	}
	return &Catalog{domains: domains}, nil
}

// DefaultCatalog returns the catalog of shipped domains.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(FrameworkMigration(), LanguageConversion())
	if err != nil {
		panic(err) // shipped domains are statically valid
	}
	return c
}

// Get returns the named domain.
func (c *Catalog) Get(name string) (*Domain, bool) {
	for _, d := range c.domains {
		if d.Name == name {
			return d, true
		}
	}
	return nil, false
}

// Names lists registered domain names in registration order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.domains))
	for i, d := range c.domains {
		names[i] = d.Name
	}
	return names
}

// Detect scores each domain's keywords against the message and returns
// the best match, falling back to the first registered domain when no
// keyword matches at all.
func (c *Catalog) Detect(message string) *Domain {
	lowered := strings.ToLower(message)
	best := c.domains[0]
	bestScore := 0
	for _, d := range c.domains {
		score := 0
		for _, kw := range d.Keywords {
			if strings.Contains(lowered, kw) {
				score++
			}
		}
		if score > bestScore {
			best = d
			bestScore = score
		}
	}
	return best
}
