package score

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/deepscan/internal/model"
)

// Entries returns a copy of the catalog table
func (c *Catalog) Entries() map[model.MediaType][]model.FeatureDefinition {
	out := make(map[model.MediaType][]model.FeatureDefinition, len(c.entries))
	for mt, defs := range c.entries {
		out[mt] = append([]model.FeatureDefinition(nil), defs...)
	}
	return out
}

// LoadCatalog decodes a YAML catalog keyed by media type and validates it
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var entries map[model.MediaType][]model.FeatureDefinition

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	return NewCatalog(entries)
}

// LoadCatalogFile reads a catalog from path
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer func() { _ = f.Close() }()

	return LoadCatalog(f)
}

// MarshalYAML renders the catalog in the format LoadCatalog reads
func (c *Catalog) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, mt := range model.MediaTypes() {
		var value yaml.Node
		if err := value.Encode(c.entries[mt]); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: string(mt)}, &value)
	}
	return node, nil
}
