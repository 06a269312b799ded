package services

import (
	"context"
	"log"
	"sort"
	"strings"

	"github.com/example/crumb/internal/models"
)

// NormalizeZip trims zip and reports whether it is a five-digit US postal code.
func NormalizeZip(zip string) (string, bool) {
	zip = strings.TrimSpace(zip)
	if len(zip) != 5 {
		return "", false
	}
	for i := 0; i < len(zip); i++ {
		if zip[i] < '0' || zip[i] > '9' {
			return "", false
		}
	}
	return zip, true
}

// ResolveZone returns the active zone whose ZIP set contains zip, or nil when
// the ZIP is malformed or outside every zone. When more than one active zone
// claims the ZIP, the lowest SortOrder wins (then name, then id) and the
// conflict is logged.
func ResolveZone(zones []models.DeliveryZone, zip string) *models.DeliveryZone {
	zip, ok := NormalizeZip(zip)
	if !ok {
		return nil
	}

	var matches []models.DeliveryZone
	for _, zone := range zones {
		if zone.IsActive && zone.ZipCodes.Contains(zip) {
			matches = append(matches, zone)
		}
	}

	switch len(matches) {
	case 0:
		return nil
	case 1:
		return &matches[0]
	}

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID.String() < b.ID.String()
	})

	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = m.Name
	}
	log.Printf("[Zones] ZIP %s is claimed by %d active zones (%s); using %q",
		zip, len(matches), strings.Join(names, ", "), matches[0].Name)

	return &matches[0]
}

// ZoneStore is the read side of the zone table the resolver needs.
type ZoneStore interface {
	ActiveZones(ctx context.Context) ([]models.DeliveryZone, error)
}

// ZoneService resolves ZIP codes against the stored zones.
type ZoneService struct {
	zones ZoneStore
}

func NewZoneService(zones ZoneStore) *ZoneService {
	return &ZoneService{zones: zones}
}

// Resolve loads the active zones and resolves zip against them. A nil zone
// with a nil error means the ZIP is outside the service area.
func (s *ZoneService) Resolve(ctx context.Context, zip string) (*models.DeliveryZone, error) {
	if _, ok := NormalizeZip(zip); !ok {
		return nil, nil
	}

	zones, err := s.zones.ActiveZones(ctx)
	if err != nil {
		return nil, err
	}
	return ResolveZone(zones, zip), nil
}
