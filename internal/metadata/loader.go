package metadata

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
)

// SchemaFile is the on-disk form of a schema override.
type SchemaFile struct {
	Entities []*Entity `json:"entities"`
	Rules    []*Rule   `json:"rules"`
}

// LoadFile reads a JSON schema file and populates the registry.
func LoadFile(path string, reg *Registry) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open schema: %w", err)
	}
	defer f.Close()
	return LoadJSON(f, reg)
}

// LoadJSON decodes a schema document and replaces the registry's contents.
// Relationships pointing at unknown targets are dropped with a warning.
func LoadJSON(r io.Reader, reg *Registry) error {
	var doc SchemaFile
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return fmt.Errorf("decode schema: %w", err)
	}
	if len(doc.Entities) == 0 {
		return fmt.Errorf("schema declares no entities")
	}

	known := make(map[string]bool, len(doc.Entities))
	for _, e := range doc.Entities {
		if e.Name == "" {
			return fmt.Errorf("entity without name")
		}
		known[e.Name] = true
	}

	for _, e := range doc.Entities {
		if e.PrimaryKey.Field == "" {
			e.PrimaryKey = PrimaryKey{Field: "id", Type: "uuid"}
		}
		if e.Table == "" {
			e.Table = reg.Naming().Column(reg.Naming().WireType(e.Name))
		}
		kept := e.Relationships[:0]
		for _, rel := range e.Relationships {
			if !known[rel.Target] {
				log.Warn().Str("entity", e.Name).Str("relationship", rel.Name).
					Msgf("skipping relationship to unknown entity %s", rel.Target)
				continue
			}
			kept = append(kept, rel)
		}
		e.Relationships = kept
	}

	reg.Load(doc.Entities)
	reg.LoadRules(doc.Rules)

	log.Info().Msgf("Loaded %d entities, %d rules into registry", len(doc.Entities), len(doc.Rules))
	return nil
}
