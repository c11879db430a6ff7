package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/exp/rand"

	"augplayground/internal/apperror"
	"augplayground/internal/models"
	"augplayground/pkg/augment"
)

const tracerName = "augplayground/pipeline"

// ghostingRestore is the fraction of central k-space ghosting leaves
// untouched
const ghostingRestore = 0.02

// Observer is notified after each transform is applied
type Observer interface {
	TransformApplied(name string, elapsed time.Duration)
}

// Executor builds augmentations from specs and applies them in order
type Executor struct {
	tracer   trace.Tracer
	observer Observer
}

// ExecutorOption configures an Executor
type ExecutorOption func(*Executor)

// WithObserver reports every applied transform to o
func WithObserver(o Observer) ExecutorOption {
	return func(e *Executor) { e.observer = o }
}

// WithTracer overrides the tracer taken from the global provider
func WithTracer(t trace.Tracer) ExecutorOption {
	return func(e *Executor) { e.tracer = t }
}

// NewExecutor creates an executor
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{tracer: otel.Tracer(tracerName)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply runs specs over a copy of vol. With no specs the input volume is
// returned as is and no generator is created, so the seed has no effect.
// Otherwise a generator is seeded from seed (or fresh entropy when nil)
// right before the first transform. Any failure is a pipeline error.
func (e *Executor) Apply(ctx context.Context, vol *models.Volume, specs []Spec, seed *int64) (*models.Volume, error) {
	if len(specs) == 0 {
		return vol, nil
	}

	transforms := make([]augment.Transform, len(specs))
	for i, spec := range specs {
		t, err := Construct(spec)
		if err != nil {
			return nil, apperror.Pipeline(err)
		}
		transforms[i] = t
	}

	ctx, span := e.tracer.Start(ctx, "pipeline.apply", trace.WithAttributes(
		attribute.Int("pipeline.transforms", len(specs)),
		attribute.Bool("pipeline.seeded", seed != nil),
	))
	defer span.End()

	rng := newRand(seed)
	out := vol.Clone()
	for _, t := range transforms {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, apperror.Pipeline(err)
		}
		next, err := e.applyOne(ctx, t, out, rng)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, apperror.Pipeline(err)
		}
		out = next
	}
	return out, nil
}

func (e *Executor) applyOne(ctx context.Context, t augment.Transform, vol *models.Volume, rng *rand.Rand) (out *models.Volume, err error) {
	_, span := e.tracer.Start(ctx, "transform."+t.Name())
	defer span.End()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%s panicked: %v", t.Name(), r)
		}
		if err == nil && e.observer != nil {
			e.observer.TransformApplied(t.Name(), time.Since(start))
		}
	}()

	out, err = t.Apply(vol, rng)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.Name(), err)
	}
	if out.Shape() != vol.Shape() {
		return nil, fmt.Errorf("%s changed the volume shape from %v to %v", t.Name(), vol.Shape(), out.Shape())
	}
	return out, nil
}

func newRand(seed *int64) *rand.Rand {
	s := uint64(time.Now().UnixNano())
	if seed != nil {
		s = uint64(*seed)
	}
	return rand.New(rand.NewSource(s))
}

// constructors builds the augmentation for every kind
var constructors = map[Kind]func(Params) (augment.Transform, error){
	KindFlip: func(p Params) (augment.Transform, error) {
		fp := p.(*FlipParams)
		axes, err := toAxes("axes", fp.Axes)
		if err != nil {
			return nil, err
		}
		if fp.P.Type != NumberValue || fp.P.Num < 0 || fp.P.Num > 1 {
			return nil, fmt.Errorf("p must be a probability, got %s", fp.P.Repr())
		}
		return &augment.Flip{Axes: axes, P: fp.P.Num}, nil
	},
	KindAffine: func(p Params) (augment.Transform, error) {
		ap := p.(*AffineParams)
		scales, err := toRanges3("scales", ap.Scales, aroundOne)
		if err != nil {
			return nil, err
		}
		degrees, err := toRanges3("degrees", ap.Degrees, symmetric)
		if err != nil {
			return nil, err
		}
		translation, err := toRanges3("translation", ap.Translation, symmetric)
		if err != nil {
			return nil, err
		}
		return &augment.Affine{Scales: scales, Degrees: degrees, Translation: translation}, nil
	},
	KindElastic: func(p Params) (augment.Transform, error) {
		ep := p.(*ElasticParams)
		points, err := toInts3("num_control_points", ep.NumControlPoints)
		if err != nil {
			return nil, err
		}
		disp, err := toFloats3("max_displacement", ep.MaxDisplacement)
		if err != nil {
			return nil, err
		}
		return &augment.ElasticDeformation{NumControlPoints: points, MaxDisplacement: disp}, nil
	},
	KindAnisotropy: func(p Params) (augment.Transform, error) {
		ap := p.(*AnisotropyParams)
		axes, err := toAxes("axes", ap.Axes)
		if err != nil {
			return nil, err
		}
		down, err := toRange("downsampling", ap.Downsampling, fromOne)
		if err != nil {
			return nil, err
		}
		return &augment.Anisotropy{Axes: axes, Downsampling: down}, nil
	},
	KindMotion: func(p Params) (augment.Transform, error) {
		mp := p.(*MotionParams)
		degrees, err := toRange("degrees", mp.Degrees, symmetric)
		if err != nil {
			return nil, err
		}
		translation, err := toRange("translation", mp.Translation, symmetric)
		if err != nil {
			return nil, err
		}
		n, err := toInt("num_transforms", mp.NumTransforms)
		if err != nil {
			return nil, err
		}
		return &augment.Motion{Degrees: degrees, Translation: translation, NumTransforms: n}, nil
	},
	KindGhosting: func(p Params) (augment.Transform, error) {
		gp := p.(*GhostingParams)
		ghosts, err := toIntRange("num_ghosts", gp.NumGhosts, func(int) int { return 0 })
		if err != nil {
			return nil, err
		}
		intensity, err := toRange("intensity", gp.Intensity, fromZero)
		if err != nil {
			return nil, err
		}
		return &augment.Ghosting{NumGhosts: ghosts, Intensity: intensity, Restore: ghostingRestore}, nil
	},
	KindSpike: func(p Params) (augment.Transform, error) {
		sp := p.(*SpikeParams)
		spikes, err := toIntRange("num_spikes", sp.NumSpikes, func(n int) int { return n })
		if err != nil {
			return nil, err
		}
		intensity, err := toRange("intensity", sp.Intensity, symmetric)
		if err != nil {
			return nil, err
		}
		return &augment.Spike{NumSpikes: spikes, Intensity: intensity}, nil
	},
	KindSwap: func(p Params) (augment.Transform, error) {
		sp := p.(*SwapParams)
		patch, err := toInts3("patch_size", sp.PatchSize)
		if err != nil {
			return nil, err
		}
		iterations, err := toInt("num_iterations", sp.NumIterations)
		if err != nil {
			return nil, err
		}
		return &augment.Swap{PatchSize: patch, NumIterations: iterations}, nil
	},
	KindNoise: func(p Params) (augment.Transform, error) {
		np := p.(*NoiseParams)
		mean, err := toRange("mean", np.Mean, symmetric)
		if err != nil {
			return nil, err
		}
		std, err := toRange("std", np.Std, fromZero)
		if err != nil {
			return nil, err
		}
		return &augment.Noise{Mean: mean, Std: std}, nil
	},
	KindGamma: func(p Params) (augment.Transform, error) {
		gp := p.(*GammaParams)
		r, err := toRange("log_gamma", gp.LogGamma, symmetric)
		if err != nil {
			return nil, err
		}
		return &augment.Gamma{LogGamma: r}, nil
	},
	KindBias: func(p Params) (augment.Transform, error) {
		bp := p.(*BiasParams)
		coeffs, err := toRange("coefficients", bp.Coefficients, symmetric)
		if err != nil {
			return nil, err
		}
		order, err := toInt("order", bp.Order)
		if err != nil {
			return nil, err
		}
		return &augment.BiasField{Coefficients: coeffs, Order: order}, nil
	},
	KindBlur: func(p Params) (augment.Transform, error) {
		bp := p.(*BlurParams)
		std, err := toRanges3("std", bp.Std, fromZero)
		if err != nil {
			return nil, err
		}
		return &augment.Blur{Std: std}, nil
	},
}

// Construct builds the augmentation described by spec
func Construct(spec Spec) (augment.Transform, error) {
	build, ok := constructors[spec.Kind]
	if !ok {
		return nil, fmt.Errorf("no constructor for %s", spec.Kind)
	}
	if spec.Params == nil || spec.Params.Kind() != spec.Kind {
		return nil, fmt.Errorf("%s: params do not match the transform", spec.Kind)
	}
	return build(spec.Params)
}
