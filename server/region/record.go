package region

import "fmt"

// Record is the serialised form of a region.
type Record struct {
	Name      string `yaml:"name"`
	Primary   string `yaml:"primary,omitempty"`
	Secondary string `yaml:"secondary,omitempty"`
}

// Record returns the serialised form of the region.
func (r *Region) Record() Record {
	rec := Record{Name: r.name}
	if l, ok := r.Primary(); ok {
		rec.Primary = l.String()
	}
	if l, ok := r.Secondary(); ok {
		rec.Secondary = l.String()
	}
	return rec
}

// Region decodes the region stored in the record.
func (rec Record) Region() (*Region, error) {
	var primary, secondary *Location
	for _, c := range []struct {
		raw string
		dst **Location
	}{{rec.Primary, &primary}, {rec.Secondary, &secondary}} {
		if c.raw == "" {
			continue
		}
		l, err := ParseLocation(c.raw)
		if err != nil {
			return nil, fmt.Errorf("region %s: %w", rec.Name, err)
		}
		*c.dst = &l
	}
	r, err := New(rec.Name, primary, secondary)
	if err != nil {
		return nil, fmt.Errorf("region %s: %w", rec.Name, err)
	}
	return r, nil
}
