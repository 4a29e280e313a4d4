// Package exchange provides the venue client directory and the paper
// (simulated) exchange used by paper mode and tests.
package exchange

import (
	"fmt"
	"strings"

	"github.com/arbot-io/arbot/internal/domain"
)

// Directory is a static map of venue name to client.
type Directory struct {
	clients map[string]domain.ExchangeClient
}

// NewDirectory builds a Directory from the given clients, keyed by their
// lowercased Name().
func NewDirectory(clients ...domain.ExchangeClient) *Directory {
	m := make(map[string]domain.ExchangeClient, len(clients))
	for _, c := range clients {
		m[strings.ToLower(c.Name())] = c
	}
	return &Directory{clients: m}
}

// Venue resolves a venue name to its client.
func (d *Directory) Venue(name string) (domain.ExchangeClient, error) {
	c, ok := d.clients[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("exchange: %q: %w", name, domain.ErrUnknownVenue)
	}
	return c, nil
}

// Names returns the registered venue names.
func (d *Directory) Names() []string {
	names := make([]string, 0, len(d.clients))
	for name := range d.clients {
		names = append(names, name)
	}
	return names
}

var _ domain.ExchangeDirectory = (*Directory)(nil)
