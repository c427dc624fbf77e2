package firewall

import (
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaSet holds compiled per-tool input schemas. Compilation happens at
// registration so a broken schema fails loudly then, not per call.
type schemaSet struct {
	mu      sync.RWMutex
	byTool  map[string]*jsonschema.Schema
}

func newSchemaSet() *schemaSet {
	return &schemaSet{byTool: map[string]*jsonschema.Schema{}}
}

func (s *schemaSet) register(tool string, raw []byte) error {
	compiled, err := jsonschema.CompileString(tool+".json", string(raw))
	if err != nil {
		return fmt.Errorf("invalid input schema for %s: %w", tool, err)
	}
	s.mu.Lock()
	s.byTool[tool] = compiled
	s.mu.Unlock()
	return nil
}

func (s *schemaSet) validate(tool string, params map[string]any) error {
	s.mu.RLock()
	compiled, ok := s.byTool[tool]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	doc := map[string]any{}
	for k, v := range params {
		doc[k] = v
	}
	if err := compiled.Validate(doc); err != nil {
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			leaf := firstLeaf(ve)
			return fmt.Errorf("%s: %s", leaf.InstanceLocation, leaf.Message)
		}
		return err
	}
	return nil
}

func firstLeaf(err *jsonschema.ValidationError) *jsonschema.ValidationError {
	if len(err.Causes) == 0 {
		return err
	}
	return firstLeaf(err.Causes[0])
}
