package interpreter

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed guess.schema.json
var guessSchema string

const guessSchemaID = "https://finia.app/schemas/guess.json"

// ErrValidation can be used with errors.Is to detect a reply that does not
// match the guess schema.
var ErrValidation = errors.New("validation failed")

// Validator checks interpreter replies against the guess schema.
type Validator struct {
	schema *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	s, err := jsonschema.CompileString(guessSchemaID, guessSchema)
	if err != nil {
		return nil, fmt.Errorf("compile guess schema: %w", err)
	}
	return &Validator{schema: s}, nil
}

func (v *Validator) Validate(raw []byte) error {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
