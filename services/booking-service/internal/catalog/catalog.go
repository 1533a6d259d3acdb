package catalog

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Service is an immutable catalog entry.
type Service struct {
	Name     string
	Duration time.Duration
}

// Catalog maps service names to their durations. Lookups are
// case-insensitive; listing order follows the configured order.
type Catalog struct {
	services []Service
	byName   map[string]Service
}

// Parse builds a catalog from a comma-separated list of name=minutes pairs,
// e.g. "Haircut=45,Beard trim=20,Styling=30".
func Parse(raw string) (*Catalog, error) {
	c := &Catalog{byName: map[string]Service{}}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, minutes, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid catalog entry %q (want name=minutes)", part)
		}
		name = strings.TrimSpace(name)
		mins, err := strconv.Atoi(strings.TrimSpace(minutes))
		if err != nil || mins <= 0 {
			return nil, fmt.Errorf("invalid duration for service %q: %q", name, minutes)
		}
		key := fold(name)
		if name == "" {
			return nil, fmt.Errorf("invalid catalog entry %q (empty name)", part)
		}
		if _, exists := c.byName[key]; exists {
			return nil, fmt.Errorf("duplicate service %q", name)
		}
		svc := Service{Name: name, Duration: time.Duration(mins) * time.Minute}
		c.services = append(c.services, svc)
		c.byName[key] = svc
	}
	if len(c.services) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}
	return c, nil
}

// Services returns the catalog entries in configured order.
func (c *Catalog) Services() []Service {
	out := make([]Service, len(c.services))
	copy(out, c.services)
	return out
}

// Lookup resolves a service by name.
func (c *Catalog) Lookup(name string) (Service, bool) {
	svc, ok := c.byName[fold(name)]
	return svc, ok
}

// Selection validates a set of chosen service names against the catalog and
// returns the canonical names (catalog order, duplicates collapsed) together
// with the total duration. An empty or unknown selection is an error.
func (c *Catalog) Selection(names []string) ([]string, time.Duration, error) {
	chosen := map[string]bool{}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := c.byName[fold(name)]; !ok {
			return nil, 0, fmt.Errorf("unknown service %q", name)
		}
		chosen[fold(name)] = true
	}
	if len(chosen) == 0 {
		return nil, 0, fmt.Errorf("no services selected")
	}

	var canonical []string
	var total time.Duration
	for _, svc := range c.services {
		if chosen[fold(svc.Name)] {
			canonical = append(canonical, svc.Name)
			total += svc.Duration
		}
	}
	return canonical, total, nil
}

func fold(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
