package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPayload(t *testing.T, src string) map[string]any {
	t.Helper()
	payload, err := DecodePayloadBytes([]byte(src))
	require.NoError(t, err)
	return payload
}

func TestBuildDefaults(t *testing.T) {
	payload := mustPayload(t, `{
		"flip": {"enabled": true},
		"elastic": {"enabled": true},
		"intensity": {"gamma": {"enabled": true}, "blur": {"enabled": true}}
	}`)

	specs := Build(payload)
	require.Len(t, specs, 4)

	assert.Equal(t, KindFlip, specs[0].Kind)
	flip := specs[0].Params.(*FlipParams)
	assert.True(t, flip.Axes.Equal(Tuple(String("lr"))))
	assert.True(t, flip.P.Equal(Float(0.5)))

	elastic := specs[1].Params.(*ElasticParams)
	assert.True(t, elastic.NumControlPoints.Equal(Int(7)))
	assert.True(t, elastic.MaxDisplacement.Equal(Int(7)))

	gamma := specs[2].Params.(*GammaParams)
	assert.True(t, gamma.LogGamma.Equal(Tuple(Float(-0.3), Float(0.3))))

	blur := specs[3].Params.(*BlurParams)
	assert.True(t, blur.Std.Equal(Tuple(Int(0), Int(2))))
}

func TestBuildReadsCamelCaseAndSnakeCase(t *testing.T) {
	payload := mustPayload(t, `{
		"swap": {"enabled": true, "patchSize": 8, "num_iterations": 3},
		"motion": {"enabled": true, "numTransforms": 4, "num_transforms": 9}
	}`)

	specs := Build(payload)
	require.Len(t, specs, 2)

	motion := specs[0].Params.(*MotionParams)
	assert.True(t, motion.NumTransforms.Equal(Int(4)), "camelCase wins over snake_case")

	swap := specs[1].Params.(*SwapParams)
	assert.True(t, swap.PatchSize.Equal(Int(8)))
	assert.True(t, swap.NumIterations.Equal(Int(3)))
}

func TestBuildSkipsDisabledAndMalformedEntries(t *testing.T) {
	payload := mustPayload(t, `{
		"flip": {"enabled": false},
		"affine": "yes",
		"elastic": {"enabled": "true"},
		"anisotropy": {},
		"unknown": {"enabled": true},
		"intensity": {"noise": {"enabled": true}, "bias": [1, 2]}
	}`)

	specs := Build(payload)
	require.Len(t, specs, 1)
	assert.Equal(t, KindNoise, specs[0].Kind)
}

func TestBuildHonoursOrder(t *testing.T) {
	payload := mustPayload(t, `{
		"order": {"spatial": ["swap", "flip", "bogus"], "intensity": ["blur", "noise"]},
		"flip": {"enabled": true},
		"swap": {"enabled": true},
		"affine": {"enabled": true},
		"intensity": {"noise": {"enabled": true}, "blur": {"enabled": true}, "gamma": {"enabled": true}}
	}`)

	var names []string
	for _, s := range Build(payload) {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"RandomSwap", "RandomFlip", "RandomBlur", "RandomNoise"}, names)
}

func TestBuildDefaultOrder(t *testing.T) {
	src := `{"intensity": {}}`
	payload := mustPayload(t, src)
	intensity := payload["intensity"].(map[string]any)
	for _, k := range Kinds() {
		if k.Pass() == Spatial {
			payload[k.Key()] = map[string]any{"enabled": true}
		} else {
			intensity[k.Key()] = map[string]any{"enabled": true}
		}
	}

	specs := Build(payload)
	require.Len(t, specs, len(Kinds()))
	for i, s := range specs {
		assert.Equal(t, Kind(i), s.Kind)
	}
}

func TestBuildMalformedParamFallsBackToDefault(t *testing.T) {
	payload := mustPayload(t, `{
		"flip": {"enabled": true, "p": "often", "axes": {"x": 1}},
		"affine": {"enabled": true, "degrees": [5, 15], "translation": null},
		"intensity": {"noise": {"enabled": true, "mean": 1, "std": "0.25"}}
	}`)

	specs := Build(payload)
	require.Len(t, specs, 3)

	flip := specs[0].Params.(*FlipParams)
	assert.True(t, flip.P.Equal(Float(0.5)))
	assert.True(t, flip.Axes.Equal(Tuple(String("lr"))))

	affine := specs[1].Params.(*AffineParams)
	assert.True(t, affine.Degrees.Equal(Tuple(Int(5), Int(15))))
	assert.True(t, affine.Translation.Equal(Int(5)))

	noise := specs[2].Params.(*NoiseParams)
	assert.True(t, noise.Mean.Equal(Float(1)), "mean is coerced to float")
	assert.True(t, noise.Std.Equal(Float(0.25)))
}

func TestBuildNilPayload(t *testing.T) {
	if specs := Build(nil); len(specs) != 0 {
		t.Errorf("Expected no specs, got %d", len(specs))
	}
}

func TestConfigJSON(t *testing.T) {
	payload := mustPayload(t, `{
		"affine": {"enabled": true},
		"intensity": {"noise": {"enabled": true, "std": 1}}
	}`)

	data, err := json.Marshal(Export(Build(payload)))
	require.NoError(t, err)

	expected := `{"library":"torchio","transforms":[` +
		`{"name":"RandomAffine","params":{"scales":[0.9,1.1],"degrees":10,"translation":5}},` +
		`{"name":"RandomNoise","params":{"mean":0.0,"std":1.0}}]}`
	assert.Equal(t, expected, string(data))

	var back Config
	require.NoError(t, json.Unmarshal(data, &back))
	require.Len(t, back.Transforms, 2)
	assert.Equal(t, KindAffine, back.Transforms[0].Kind)
	assert.True(t, back.Transforms[1].Params.(*NoiseParams).Std.Equal(Float(1)))
}

func TestExportEmpty(t *testing.T) {
	data, err := json.Marshal(Export(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"library":"torchio","transforms":[]}`, string(data))
}

func TestDefaultPayloadBuildsNothingUntilEnabled(t *testing.T) {
	payload := DefaultPayload()
	assert.Empty(t, Build(payload))

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	decoded, err := DecodePayloadBytes(data)
	require.NoError(t, err)

	decoded["swap"].(map[string]any)["enabled"] = true
	specs := Build(decoded)
	require.Len(t, specs, 1)
	assert.True(t, specs[0].Params.(*SwapParams).PatchSize.Equal(Int(15)))
}
