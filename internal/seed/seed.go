package seed

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"relayengine/internal/models"
)

// File is the layout of a rule seed file
type File struct {
	OwnerID string        `mapstructure:"owner_id"`
	Rules   []models.Rule `mapstructure:"rules"`
}

// RuleUpserter stores rules, replacing existing ids
type RuleUpserter interface {
	UpsertRule(ctx context.Context, r models.Rule) error
}

// Decode parses a YAML seed document. Unknown keys are rejected. Rules without an id get
// one derived from their name so re-imports update instead of duplicating.
func Decode(r io.Reader) ([]models.Rule, error) {
	var raw map[string]interface{}
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("parse seed yaml: %w", err)
	}

	var f File
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &f,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}

	for i := range f.Rules {
		r := &f.Rules[i]
		r.Normalize()
		if r.ID == "" {
			r.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("relayengine/rule/"+r.Name)).String()
		}
		if r.OwnerID == "" {
			r.OwnerID = f.OwnerID
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.Name, err)
		}
	}
	return f.Rules, nil
}

// LoadFile decodes the seed file at path
func LoadFile(path string) ([]models.Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Import upserts rules into store and returns how many were written
func Import(ctx context.Context, store RuleUpserter, rules []models.Rule) (int, error) {
	for i, r := range rules {
		if err := store.UpsertRule(ctx, r); err != nil {
			return i, fmt.Errorf("upsert rule %s: %w", r.ID, err)
		}
		log.Printf("SEED: Imported rule %s (%s)", r.ID, r.Name)
	}
	return len(rules), nil
}
