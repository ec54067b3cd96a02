package chain

import (
	"encoding/json"
	"fmt"

	"sigs.k8s.io/yaml"
)

// StageDef names a registered primitive and the JSON-encoded arguments it
// was built with.
type StageDef struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// elementDef is one token of a flattened chain expression: either an
// operator marker or a leaf stage.
type elementDef struct {
	Op    string    `json:"op,omitempty"`
	Stage *StageDef `json:"stage,omitempty"`
}

// PipelineDefinition is the declarative, round-trippable form of a chain
// expression: the flattened token stream Flatten produces, with every leaf
// stage reduced to its registered name and constructor arguments instead
// of the live Go value. Building one back with Build reparses the tokens
// exactly the way Redirect/Pipe do, so a definition loaded from YAML
// normalizes to the same shape a hand-built chain would.
type PipelineDefinition struct {
	Elements []elementDef `json:"elements"`
}

// Describe flattens pc and renders each leaf through its Serializable
// factory name and arguments.
func Describe(pc PipeChain) (*PipelineDefinition, error) {
	var tokens []Element
	pc.Flatten(&tokens)

	def := &PipelineDefinition{Elements: make([]elementDef, 0, len(tokens))}
	for _, tok := range tokens {
		switch t := tok.(type) {
		case string:
			switch t {
			case MarkerRedirect:
				def.Elements = append(def.Elements, elementDef{Op: "redirect"})
			case MarkerPipe:
				def.Elements = append(def.Elements, elementDef{Op: "pipe"})
			default:
				return nil, fmt.Errorf("chain: unrecognized token marker %q", t)
			}
		default:
			pc, ok := tok.(PipeChain)
			if !ok {
				return nil, fmt.Errorf("chain: flattened token %T is neither a marker nor a stage", tok)
			}
			ser, ok := pc.(Serializable)
			if !ok {
				return nil, fmt.Errorf("chain: %T has no registered factory and cannot be described", pc)
			}
			args, err := ser.FactoryArgs()
			if err != nil {
				return nil, fmt.Errorf("chain: encoding args for %s: %w", ser.FactoryName(), err)
			}
			def.Elements = append(def.Elements, elementDef{Stage: &StageDef{Name: ser.FactoryName(), Args: args}})
		}
	}
	return def, nil
}

// Build reconstructs the chain described by def, using the registry to
// instantiate each leaf stage before reparsing the token stream.
func (d *PipelineDefinition) Build() (PipeChain, error) {
	tokens := make([]Element, 0, len(d.Elements))
	for _, el := range d.Elements {
		if el.Stage != nil {
			pc, err := Create(el.Stage.Name, el.Stage.Args)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, pc)
			continue
		}
		switch el.Op {
		case "redirect":
			tokens = append(tokens, MarkerRedirect)
		case "pipe":
			tokens = append(tokens, MarkerPipe)
		default:
			return nil, fmt.Errorf("chain: unknown operator %q in pipeline definition", el.Op)
		}
	}
	return parseChain(tokens)
}

// ToYAML renders pc's declarative definition as YAML.
func ToYAML(pc PipeChain) ([]byte, error) {
	def, err := Describe(pc)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(def)
}

// FromYAML parses a declarative pipeline definition and builds the chain
// it describes.
func FromYAML(data []byte) (PipeChain, error) {
	var def PipelineDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("chain: parsing pipeline definition: %w", err)
	}
	return def.Build()
}
