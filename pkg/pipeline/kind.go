package pipeline

import "fmt"

// Kind is the closed set of transforms the pipeline can build
type Kind int

const (
	KindFlip Kind = iota
	KindAffine
	KindElastic
	KindAnisotropy
	KindMotion
	KindGhosting
	KindSpike
	KindSwap
	KindNoise
	KindGamma
	KindBias
	KindBlur

	numKinds
)

// Pass groups transforms in the payload: spatial entries sit at the top
// level, intensity entries under "intensity"
type Pass int

const (
	Spatial Pass = iota
	Intensity
)

type kindInfo struct {
	key  string
	name string
	pass Pass
}

var kinds = [numKinds]kindInfo{
	KindFlip:       {"flip", "RandomFlip", Spatial},
	KindAffine:     {"affine", "RandomAffine", Spatial},
	KindElastic:    {"elastic", "RandomElasticDeformation", Spatial},
	KindAnisotropy: {"anisotropy", "RandomAnisotropy", Spatial},
	KindMotion:     {"motion", "RandomMotion", Spatial},
	KindGhosting:   {"ghosting", "RandomGhosting", Spatial},
	KindSpike:      {"spike", "RandomSpike", Spatial},
	KindSwap:       {"swap", "RandomSwap", Spatial},
	KindNoise:      {"noise", "RandomNoise", Intensity},
	KindGamma:      {"gamma", "RandomGamma", Intensity},
	KindBias:       {"bias", "RandomBiasField", Intensity},
	KindBlur:       {"blur", "RandomBlur", Intensity},
}

// Kinds returns every kind in declaration order
func Kinds() []Kind {
	out := make([]Kind, numKinds)
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}

// Valid reports whether k is one of the declared kinds
func (k Kind) Valid() bool { return k >= 0 && k < numKinds }

// Key is the payload key, e.g. "elastic"
func (k Kind) Key() string {
	if !k.Valid() {
		return ""
	}
	return kinds[k].key
}

// Name is the canonical transform name, e.g. "RandomElasticDeformation"
func (k Kind) Name() string {
	if !k.Valid() {
		return ""
	}
	return kinds[k].name
}

// Pass reports which payload section the kind is read from
func (k Kind) Pass() Pass { return kinds[k].pass }

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kinds[k].name
}

// KindByName looks up a kind by its canonical name
func KindByName(name string) (Kind, bool) {
	for i, info := range kinds {
		if info.name == name {
			return Kind(i), true
		}
	}
	return 0, false
}

// kindByKey looks up a kind by payload key within a pass
func kindByKey(key string, pass Pass) (Kind, bool) {
	for i, info := range kinds {
		if info.key == key && info.pass == pass {
			return Kind(i), true
		}
	}
	return 0, false
}

// DefaultOrder returns the payload keys of a pass in their default
// application order
func DefaultOrder(pass Pass) []string {
	var out []string
	for _, info := range kinds {
		if info.pass == pass {
			out = append(out, info.key)
		}
	}
	return out
}
