package product

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// DefaultCatalog returns the coffee menu shipped with the binary.
func DefaultCatalog() io.Reader {
	return bytes.NewReader(defaultCatalog)
}

type Catalog struct {
	Products []CatalogEntry `yaml:"products"`
}

type CatalogEntry struct {
	Name        string  `yaml:"name"`
	Price       float64 `yaml:"price"`
	Description string  `yaml:"description"`
	Image       string  `yaml:"image"`
}

// ParseCatalog decodes a YAML catalog. Unknown keys are rejected.
func ParseCatalog(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	seen := make(map[string]struct{}, len(c.Products))
	for i, p := range c.Products {
		if err := validate(p.Name, p.Price); err != nil {
			return nil, fmt.Errorf("catalog entry %d: %w", i, err)
		}
		if _, dup := seen[p.Name]; dup {
			return nil, fmt.Errorf("catalog entry %d: duplicate product %q", i, p.Name)
		}
		seen[p.Name] = struct{}{}
	}

	return &c, nil
}
