package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// Schema returns the JSON schema of the configuration file.
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}
	s := r.Reflect(&Config{})
	s.Title = "hotplate configuration"
	return json.MarshalIndent(s, "", "  ")
}
