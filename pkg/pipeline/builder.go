// Package pipeline turns the client's transform payload into an ordered
// list of typed transform specifications, exports them as a config and a
// torchio snippet, and applies them to a volume.
package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Spec is one step of the pipeline: the closed kind tag plus its typed
// parameters
type Spec struct {
	Kind   Kind
	Params Params
}

// Name is the canonical transform name
func (s Spec) Name() string { return s.Kind.Name() }

// DecodePayload reads a JSON transform payload, keeping integer and float
// literals distinct
func DecodePayload(r io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode transform payload: %w", err)
	}
	return payload, nil
}

// DecodePayloadBytes is DecodePayload over a byte slice
func DecodePayloadBytes(data []byte) (map[string]any, error) {
	return DecodePayload(bytes.NewReader(data))
}

// Build translates a payload into specs. Spatial keys are visited in
// payload.order.spatial order, then intensity keys in
// payload.order.intensity order. Entries that are missing, not objects,
// or not enabled are skipped; unknown keys are ignored. Build never fails.
func Build(payload map[string]any) []Spec {
	if payload == nil {
		return nil
	}
	order, _ := payload["order"].(map[string]any)
	intensity, _ := payload["intensity"].(map[string]any)

	var specs []Spec
	visit := func(keys []string, pass Pass, section map[string]any) {
		for _, key := range keys {
			kind, ok := kindByKey(key, pass)
			if !ok {
				continue
			}
			entry, ok := section[key].(map[string]any)
			if !ok || !enabled(entry) {
				continue
			}
			specs = append(specs, Spec{Kind: kind, Params: paramBuilders[kind](fields(entry))})
		}
	}

	visit(orderKeys(order, "spatial", Spatial), Spatial, payload)
	visit(orderKeys(order, "intensity", Intensity), Intensity, intensity)
	return specs
}

// enabled is true only for a literal JSON true
func enabled(entry map[string]any) bool {
	b, ok := entry["enabled"].(bool)
	return ok && b
}

// orderKeys reads an order list, falling back to the default order when it
// is absent or not a list. Non-string items are dropped.
func orderKeys(order map[string]any, name string, pass Pass) []string {
	list, ok := order[name].([]any)
	if !ok {
		return DefaultOrder(pass)
	}
	keys := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			keys = append(keys, s)
		}
	}
	return keys
}

// DefaultPayload returns a payload with every transform present, disabled,
// and carrying its default parameters under the snake_case keys. The UI
// renders its controls from it.
func DefaultPayload() map[string]any {
	spatial, intensity := map[string]any{}, map[string]any{}
	payload := map[string]any{
		"order": map[string]any{
			"spatial":   toAny(DefaultOrder(Spatial)),
			"intensity": toAny(DefaultOrder(Intensity)),
		},
	}
	for _, k := range Kinds() {
		entry := map[string]any{"enabled": false}
		for _, arg := range DefaultParams(k).Args() {
			entry[arg.Key] = arg.Value
		}
		if k.Pass() == Spatial {
			spatial[k.Key()] = entry
		} else {
			intensity[k.Key()] = entry
		}
	}
	for key, entry := range spatial {
		payload[key] = entry
	}
	payload["intensity"] = intensity
	return payload
}

func toAny(keys []string) []any {
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out
}
