package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"augplayground/internal/apperror"
	"augplayground/internal/models"
)

func rampVolume(n int) *models.Volume {
	vol := models.NewVolume(n, n, n)
	for z := 0; z < n; z++ {
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				vol.Set(x, y, z, float64(x+2*y+3*z))
			}
		}
	}
	return vol
}

func seedPtr(n int64) *int64 { return &n }

func allEnabled(t *testing.T) []Spec {
	t.Helper()
	payload := mustPayload(t, `{
		"flip": {"enabled": true},
		"affine": {"enabled": true},
		"elastic": {"enabled": true, "numControlPoints": 5, "maxDisplacement": 1},
		"anisotropy": {"enabled": true},
		"motion": {"enabled": true, "degrees": 3, "translation": 1},
		"ghosting": {"enabled": true},
		"spike": {"enabled": true},
		"swap": {"enabled": true, "patchSize": 3, "numIterations": 5},
		"intensity": {
			"noise": {"enabled": true},
			"gamma": {"enabled": true},
			"bias": {"enabled": true},
			"blur": {"enabled": true, "std": [0.5, 1]}
		}
	}`)
	specs := Build(payload)
	require.Len(t, specs, 12)
	return specs
}

func TestConstructorsTotal(t *testing.T) {
	for _, k := range Kinds() {
		if _, ok := constructors[k]; !ok {
			t.Errorf("Expected constructor for %s", k)
		}
		if _, ok := paramBuilders[k]; !ok {
			t.Errorf("Expected param builder for %s", k)
		}
		params := DefaultParams(k)
		if params.Kind() != k {
			t.Errorf("Expected default params of kind %s, got %s", k, params.Kind())
		}
		tr, err := Construct(Spec{Kind: k, Params: params})
		if err != nil {
			t.Errorf("Construct(%s) with defaults failed: %v", k, err)
			continue
		}
		if tr.Name() != k.Name() {
			t.Errorf("Expected transform name %s, got %s", k.Name(), tr.Name())
		}
	}
	if len(constructors) != len(Kinds()) {
		t.Errorf("Expected %d constructors, got %d", len(Kinds()), len(constructors))
	}
}

func TestApplyEmptyIsIdentityForAnySeed(t *testing.T) {
	ex := NewExecutor()
	vol := rampVolume(6)
	before := vol.Clone()

	for _, seed := range []*int64{nil, seedPtr(0), seedPtr(42), seedPtr(-7)} {
		out, err := ex.Apply(context.Background(), vol, nil, seed)
		require.NoError(t, err)
		assert.Same(t, vol, out)
		assert.Equal(t, before.Data, out.Data)
	}
}

func TestApplySeededIsDeterministic(t *testing.T) {
	ex := NewExecutor()
	vol := rampVolume(8)
	specs := allEnabled(t)

	a, err := ex.Apply(context.Background(), vol, specs, seedPtr(1234))
	require.NoError(t, err)
	b, err := ex.Apply(context.Background(), vol, specs, seedPtr(1234))
	require.NoError(t, err)
	assert.Equal(t, a.Data, b.Data)
	assert.Equal(t, vol.Shape(), a.Shape())

	c, err := ex.Apply(context.Background(), vol, specs, seedPtr(99))
	require.NoError(t, err)
	assert.NotEqual(t, a.Data, c.Data)
}

func TestApplyDoesNotMutateSource(t *testing.T) {
	vol := rampVolume(6)
	before := vol.Clone()
	specs := Build(mustPayload(t, `{"flip": {"enabled": true, "p": 1, "axes": [0, 1, 2]}}`))

	out, err := NewExecutor().Apply(context.Background(), vol, specs, nil)
	require.NoError(t, err)
	assert.Equal(t, before.Data, vol.Data)
	assert.Equal(t, vol.At(0, 0, 0), out.At(5, 5, 5))
}

// TestApplyConcurrentSeedsIndependent runs seeded and unseeded pipelines in
// parallel; each seeded result must match its sequential baseline
func TestApplyConcurrentSeedsIndependent(t *testing.T) {
	ex := NewExecutor()
	vol := rampVolume(6)
	specs := Build(mustPayload(t, `{"intensity": {"noise": {"enabled": true}}}`))

	baseline, err := ex.Apply(context.Background(), vol, specs, seedPtr(5))
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*models.Volume, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var seed *int64
			if i%2 == 0 {
				seed = seedPtr(5)
			}
			out, err := ex.Apply(context.Background(), vol, specs, seed)
			if err == nil {
				results[i] = out
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < len(results); i += 2 {
		require.NotNil(t, results[i])
		assert.Equal(t, baseline.Data, results[i].Data)
	}
}

func TestApplyConstructionFailureIsPipelineError(t *testing.T) {
	specs := Build(mustPayload(t, `{"flip": {"enabled": true, "axes": ["up"]}}`))
	_, err := NewExecutor().Apply(context.Background(), rampVolume(4), specs, nil)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindPipeline))

	appErr, _ := apperror.As(err)
	assert.Equal(t, 500, appErr.StatusCode())
	assert.Equal(t, "pipeline failed", appErr.Detail())
}

func TestApplyRuntimeFailureIsPipelineError(t *testing.T) {
	specs := Build(mustPayload(t, `{"elastic": {"enabled": true, "numControlPoints": 2}}`))
	_, err := NewExecutor().Apply(context.Background(), rampVolume(4), specs, seedPtr(1))
	assert.True(t, apperror.IsKind(err, apperror.KindPipeline))
}

func TestApplyCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	specs := Build(mustPayload(t, `{"intensity": {"gamma": {"enabled": true}}}`))
	_, err := NewExecutor().Apply(ctx, rampVolume(4), specs, nil)
	assert.True(t, errors.Is(err, context.Canceled))
}

type recordingObserver struct {
	mu    sync.Mutex
	names []string
}

func (r *recordingObserver) TransformApplied(name string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
}

func TestApplyNotifiesObserver(t *testing.T) {
	obs := &recordingObserver{}
	specs := Build(mustPayload(t, `{"swap": {"enabled": true, "patchSize": 2}, "intensity": {"blur": {"enabled": true}}}`))
	_, err := NewExecutor(WithObserver(obs)).Apply(context.Background(), rampVolume(5), specs, seedPtr(3))
	require.NoError(t, err)
	assert.Equal(t, []string{"RandomSwap", "RandomBlur"}, obs.names)
}

func TestParseSeed(t *testing.T) {
	valid := map[string]int64{
		`42`:     42,
		`-3`:     -3,
		`7.9`:    7,
		`"17"`:   17,
		`" 8 "`:  8,
		`1e3`:    1000,
	}
	for src, expected := range valid {
		raw := decodeRaw(t, src)
		seed, err := ParseSeed(raw)
		if err != nil {
			t.Errorf("ParseSeed(%s) failed: %v", src, err)
			continue
		}
		if *seed != expected {
			t.Errorf("Expected seed %d for %s, got %d", expected, src, *seed)
		}
	}

	seed, err := ParseSeed(nil)
	assert.NoError(t, err)
	assert.Nil(t, seed)

	for _, src := range []string{`"abc"`, `"4.5"`, `true`, `[1]`, `{"a": 1}`} {
		_, err := ParseSeed(decodeRaw(t, src))
		assert.True(t, apperror.IsKind(err, apperror.KindInvalidInput), "seed %s", src)
	}
}

func decodeRaw(t *testing.T, src string) any {
	t.Helper()
	payload, err := DecodePayloadBytes([]byte(`{"v": ` + src + `}`))
	require.NoError(t, err)
	return payload["v"]
}

func TestSpecJSONRejectsUnknownTransform(t *testing.T) {
	var s Spec
	err := json.Unmarshal([]byte(`{"name": "RandomWarp", "params": {}}`), &s)
	assert.Error(t, err)
}
