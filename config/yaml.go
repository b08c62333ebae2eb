package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

func parseYaml(out interface{}, blob []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(blob))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("can't parse yaml: %w", err)
	}
	return nil
}

// expandEnv substitutes $VAR and ${VAR} references in the raw config.
// ${VAR:-default} falls back to default when VAR is unset or empty.
func expandEnv(blob []byte) []byte {
	return []byte(os.Expand(string(blob), func(ref string) string {
		name, def, hasDefault := strings.Cut(ref, ":-")
		if v := os.Getenv(name); v != "" || !hasDefault {
			return v
		}
		return def
	}))
}
