package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Library is the augmentation ecosystem exported configs target
const Library = "torchio"

// Config is the exported, canonical form of a pipeline
type Config struct {
	Library    string `json:"library"`
	Transforms []Spec `json:"transforms"`
}

// Export wraps specs in a Config
func Export(specs []Spec) Config {
	if specs == nil {
		specs = []Spec{}
	}
	return Config{Library: Library, Transforms: specs}
}

// MarshalJSON writes {"name": ..., "params": {...}} with params in their
// fixed keyword order
func (s Spec) MarshalJSON() ([]byte, error) {
	if s.Params == nil {
		return nil, fmt.Errorf("spec %s has no params", s.Kind)
	}
	var buf bytes.Buffer
	name, err := json.Marshal(s.Name())
	if err != nil {
		return nil, err
	}
	buf.WriteString(`{"name":`)
	buf.Write(name)
	buf.WriteString(`,"params":{`)
	for i, arg := range s.Params.Args() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(arg.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := arg.Value.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("param %s of %s: %w", arg.Key, s.Name(), err)
		}
		buf.Write(val)
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a spec written by MarshalJSON. Missing params take
// their defaults.
func (s *Spec) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name   string           `json:"name"`
		Params map[string]Value `json:"params"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	spec, err := specFromArgs(raw.Name, raw.Params)
	if err != nil {
		return err
	}
	*s = spec
	return nil
}

// specFromArgs rebuilds a typed spec from keyword arguments. Unknown
// names and keywords are rejected.
func specFromArgs(name string, args map[string]Value) (Spec, error) {
	kind, ok := KindByName(name)
	if !ok {
		return Spec{}, fmt.Errorf("unknown transform %q", name)
	}
	f := fields{}
	for k, v := range args {
		f[k] = v
	}
	params := paramBuilders[kind](f)

	known := map[string]bool{}
	for _, arg := range params.Args() {
		known[arg.Key] = true
	}
	for k := range args {
		if !known[k] {
			return Spec{}, fmt.Errorf("unknown argument %q for %s", k, name)
		}
	}
	return Spec{Kind: kind, Params: params}, nil
}
