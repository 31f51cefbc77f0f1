package classify

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed check_result.schema.json
var checkResultSchemaJSON string

//go:embed briefing_result.schema.json
var briefingResultSchemaJSON string

type compiledSchema struct {
	once   sync.Once
	schema *jsonschema.Schema
	err    error
}

var (
	checkSchema    = &compiledSchema{}
	briefingSchema = &compiledSchema{}
)

func (c *compiledSchema) load(name, source string) (*jsonschema.Schema, error) {
	c.once.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		if err := compiler.AddResource(name, strings.NewReader(source)); err != nil {
			c.err = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile(name)
		if err != nil {
			c.err = fmt.Errorf("compile schema: %w", err)
			return
		}

		c.schema = schema
	})

	if c.err != nil {
		return nil, c.err
	}
	if c.schema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return c.schema, nil
}

func validateCheckPayload(payload json.RawMessage) ([]CheckItem, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode result JSON: %w", err)
	}

	schema, err := checkSchema.load("check_result.schema.json", checkResultSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	var items []CheckItem
	if err := roundTripJSON(value, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func validateBriefingPayload(payload json.RawMessage) ([]BriefingItem, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode result JSON: %w", err)
	}

	schema, err := briefingSchema.load("briefing_result.schema.json", briefingResultSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	var items []BriefingItem
	if err := roundTripJSON(value, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func roundTripJSON(value any, target any) error {
	normalized, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("normalize result JSON: %w", err)
	}
	if err := json.Unmarshal(normalized, target); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}
	return nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("result is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("result contains trailing content")
	}

	return value, nil
}
