package pipeline

import (
	"strconv"
	"strings"
)

// Arg is one keyword argument of a transform
type Arg struct {
	Key   string
	Value Value
}

// Params is the typed parameter record of one transform kind. Args lists
// the keyword arguments in their fixed export order.
type Params interface {
	Kind() Kind
	Args() []Arg
	params()
}

type FlipParams struct {
	Axes Value
	P    Value
}

type AffineParams struct {
	Scales      Value
	Degrees     Value
	Translation Value
}

type ElasticParams struct {
	NumControlPoints Value
	MaxDisplacement  Value
}

type AnisotropyParams struct {
	Axes         Value
	Downsampling Value
}

type MotionParams struct {
	Degrees       Value
	Translation   Value
	NumTransforms Value
}

type GhostingParams struct {
	NumGhosts Value
	Intensity Value
}

type SpikeParams struct {
	NumSpikes Value
	Intensity Value
}

type SwapParams struct {
	PatchSize     Value
	NumIterations Value
}

type NoiseParams struct {
	Mean Value
	Std  Value
}

type GammaParams struct {
	LogGamma Value
}

type BiasParams struct {
	Coefficients Value
	Order        Value
}

type BlurParams struct {
	Std Value
}

func (*FlipParams) Kind() Kind       { return KindFlip }
func (*AffineParams) Kind() Kind     { return KindAffine }
func (*ElasticParams) Kind() Kind    { return KindElastic }
func (*AnisotropyParams) Kind() Kind { return KindAnisotropy }
func (*MotionParams) Kind() Kind     { return KindMotion }
func (*GhostingParams) Kind() Kind   { return KindGhosting }
func (*SpikeParams) Kind() Kind      { return KindSpike }
func (*SwapParams) Kind() Kind       { return KindSwap }
func (*NoiseParams) Kind() Kind      { return KindNoise }
func (*GammaParams) Kind() Kind      { return KindGamma }
func (*BiasParams) Kind() Kind       { return KindBias }
func (*BlurParams) Kind() Kind       { return KindBlur }

func (*FlipParams) params()       {}
func (*AffineParams) params()     {}
func (*ElasticParams) params()    {}
func (*AnisotropyParams) params() {}
func (*MotionParams) params()     {}
func (*GhostingParams) params()   {}
func (*SpikeParams) params()      {}
func (*SwapParams) params()       {}
func (*NoiseParams) params()      {}
func (*GammaParams) params()      {}
func (*BiasParams) params()       {}
func (*BlurParams) params()       {}

func (p *FlipParams) Args() []Arg {
	return []Arg{{"axes", p.Axes}, {"p", p.P}}
}

func (p *AffineParams) Args() []Arg {
	return []Arg{{"scales", p.Scales}, {"degrees", p.Degrees}, {"translation", p.Translation}}
}

func (p *ElasticParams) Args() []Arg {
	return []Arg{{"num_control_points", p.NumControlPoints}, {"max_displacement", p.MaxDisplacement}}
}

func (p *AnisotropyParams) Args() []Arg {
	return []Arg{{"axes", p.Axes}, {"downsampling", p.Downsampling}}
}

func (p *MotionParams) Args() []Arg {
	return []Arg{{"degrees", p.Degrees}, {"translation", p.Translation}, {"num_transforms", p.NumTransforms}}
}

func (p *GhostingParams) Args() []Arg {
	return []Arg{{"num_ghosts", p.NumGhosts}, {"intensity", p.Intensity}}
}

func (p *SpikeParams) Args() []Arg {
	return []Arg{{"num_spikes", p.NumSpikes}, {"intensity", p.Intensity}}
}

func (p *SwapParams) Args() []Arg {
	return []Arg{{"patch_size", p.PatchSize}, {"num_iterations", p.NumIterations}}
}

func (p *NoiseParams) Args() []Arg {
	return []Arg{{"mean", p.Mean}, {"std", p.Std}}
}

func (p *GammaParams) Args() []Arg {
	return []Arg{{"log_gamma", p.LogGamma}}
}

func (p *BiasParams) Args() []Arg {
	return []Arg{{"coefficients", p.Coefficients}, {"order", p.Order}}
}

func (p *BlurParams) Args() []Arg {
	return []Arg{{"std", p.Std}}
}

// fields is one transform entry of the payload. Lookups try the UI's
// camelCase key first, then the snake_case keyword name.
type fields map[string]any

func (f fields) raw(camel, snake string) (any, bool) {
	if v, ok := f[camel]; ok && v != nil {
		return v, true
	}
	if snake != camel {
		if v, ok := f[snake]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// literal returns the field as a literal, or def when it is absent or not
// a literal
func (f fields) literal(camel, snake string, def Value) Value {
	raw, ok := f.raw(camel, snake)
	if !ok {
		return def
	}
	v, ok := ValueOf(raw)
	if !ok {
		return def
	}
	return v
}

// float returns the field coerced to a float. Numeric strings are
// accepted; anything else falls back to def.
func (f fields) float(key string, def float64) Value {
	raw, ok := f.raw(key, key)
	if !ok {
		return Float(def)
	}
	if s, isStr := raw.(string); isStr {
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return Float(def)
		}
		return Float(n)
	}
	v, ok := ValueOf(raw)
	if !ok || !v.IsNumber() {
		return Float(def)
	}
	return v.AsFloat()
}

// paramBuilders maps every kind to the function reading its parameters,
// with defaults, from a payload entry
var paramBuilders = map[Kind]func(fields) Params{
	KindFlip: func(f fields) Params {
		return &FlipParams{
			Axes: f.literal("axes", "axes", Tuple(String("lr"))),
			P:    f.float("p", 0.5),
		}
	},
	KindAffine: func(f fields) Params {
		return &AffineParams{
			Scales:      f.literal("scales", "scales", Tuple(Float(0.9), Float(1.1))),
			Degrees:     f.literal("degrees", "degrees", Int(10)),
			Translation: f.literal("translation", "translation", Int(5)),
		}
	},
	KindElastic: func(f fields) Params {
		return &ElasticParams{
			NumControlPoints: f.literal("numControlPoints", "num_control_points", Int(7)),
			MaxDisplacement:  f.literal("maxDisplacement", "max_displacement", Int(7)),
		}
	},
	KindAnisotropy: func(f fields) Params {
		return &AnisotropyParams{
			Axes:         f.literal("axes", "axes", Tuple(Int(2))),
			Downsampling: f.literal("downsampling", "downsampling", Int(2)),
		}
	},
	KindMotion: func(f fields) Params {
		return &MotionParams{
			Degrees:       f.literal("degrees", "degrees", Int(10)),
			Translation:   f.literal("translation", "translation", Int(10)),
			NumTransforms: f.literal("numTransforms", "num_transforms", Int(2)),
		}
	},
	KindGhosting: func(f fields) Params {
		return &GhostingParams{
			NumGhosts: f.literal("numGhosts", "num_ghosts", Int(4)),
			Intensity: f.literal("intensity", "intensity", Float(0.5)),
		}
	},
	KindSpike: func(f fields) Params {
		return &SpikeParams{
			NumSpikes: f.literal("numSpikes", "num_spikes", Int(1)),
			Intensity: f.literal("intensity", "intensity", Float(1.0)),
		}
	},
	KindSwap: func(f fields) Params {
		return &SwapParams{
			PatchSize:     f.literal("patchSize", "patch_size", Int(15)),
			NumIterations: f.literal("numIterations", "num_iterations", Int(100)),
		}
	},
	KindNoise: func(f fields) Params {
		return &NoiseParams{
			Mean: f.float("mean", 0.0),
			Std:  f.float("std", 0.1),
		}
	},
	KindGamma: func(f fields) Params {
		return &GammaParams{
			LogGamma: f.literal("logGamma", "log_gamma", Tuple(Float(-0.3), Float(0.3))),
		}
	},
	KindBias: func(f fields) Params {
		return &BiasParams{
			Coefficients: f.literal("coefficients", "coefficients", Float(0.5)),
			Order:        f.literal("order", "order", Int(3)),
		}
	},
	KindBlur: func(f fields) Params {
		return &BlurParams{
			Std: f.literal("std", "std", Tuple(Int(0), Int(2))),
		}
	},
}

// DefaultParams returns the parameters a kind gets when its payload entry
// sets nothing but enabled
func DefaultParams(k Kind) Params {
	return paramBuilders[k](fields{})
}
