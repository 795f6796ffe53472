package crud

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// document is the YAML layout read by LoadConfig:
//
//	defaults:
//	  baseUrl: https://api.example.com
//	resources:
//	  - name: users
//	    resource: users
//	  - name: orders
//	    backend: dynamodb
//	    table: orders
type document struct {
	Defaults  Config   `yaml:"defaults"`
	Resources []Config `yaml:"resources"`
}

// LoadConfig reads resource configurations from YAML. Each resource inherits
// the unset fields of the defaults section. Unknown fields are rejected.
func LoadConfig(r io.Reader) ([]Config, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode config: %w", err)
	}

	configs := make([]Config, len(doc.Resources))
	for i, res := range doc.Resources {
		configs[i] = res.withDefaults(doc.Defaults)
	}
	return configs, nil
}
