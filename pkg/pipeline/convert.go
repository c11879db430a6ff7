package pipeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"augplayground/pkg/augment"
)

// numbers flattens a number or a tuple of numbers
func numbers(name string, v Value) ([]float64, error) {
	switch v.Type {
	case NumberValue:
		return []float64{v.Num}, nil
	case TupleValue:
		out := make([]float64, len(v.Items))
		for i, item := range v.Items {
			if item.Type != NumberValue {
				return nil, fmt.Errorf("%s: expected numbers, got %s", name, v.Repr())
			}
			out[i] = item.Num
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s: expected a number or tuple of numbers, got %s", name, v.Repr())
}

func integers(name string, v Value) ([]int, error) {
	nums, err := numbers(name, v)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(nums))
	for i, n := range nums {
		if n != math.Trunc(n) || math.Abs(n) > maxExactInt {
			return nil, fmt.Errorf("%s: expected integers, got %s", name, v.Repr())
		}
		out[i] = int(n)
	}
	return out, nil
}

// scalarRange turns a single number into a range
type scalarRange func(float64) augment.Range

var (
	symmetric scalarRange = augment.Symmetric
	fromZero  scalarRange = func(d float64) augment.Range { return augment.Range{Lo: 0, Hi: d} }
	aroundOne scalarRange = func(d float64) augment.Range { return augment.Range{Lo: 1 - d, Hi: 1 + d} }
	fromOne   scalarRange = func(d float64) augment.Range { return augment.Range{Lo: 1, Hi: d} }
)

// toRange reads a scalar (expanded with scalar) or an (a, b) pair
func toRange(name string, v Value, scalar scalarRange) (augment.Range, error) {
	nums, err := numbers(name, v)
	if err != nil {
		return augment.Range{}, err
	}
	switch len(nums) {
	case 1:
		if v.Type == NumberValue {
			return scalar(nums[0]), nil
		}
		return augment.Fixed(nums[0]), nil
	case 2:
		if nums[1] < nums[0] {
			return augment.Range{}, fmt.Errorf("%s: range %s is decreasing", name, v.Repr())
		}
		return augment.Range{Lo: nums[0], Hi: nums[1]}, nil
	}
	return augment.Range{}, fmt.Errorf("%s: expected a number or (min, max), got %s", name, v.Repr())
}

// toRanges3 reads per-axis ranges: a scalar or pair shared by all axes,
// three scalars (one per axis) or six numbers (a pair per axis)
func toRanges3(name string, v Value, scalar scalarRange) ([3]augment.Range, error) {
	var out [3]augment.Range
	nums, err := numbers(name, v)
	if err != nil {
		return out, err
	}
	switch len(nums) {
	case 1, 2:
		r, err := toRange(name, v, scalar)
		if err != nil {
			return out, err
		}
		out = [3]augment.Range{r, r, r}
	case 3:
		for i, n := range nums {
			out[i] = scalar(n)
		}
	case 6:
		for i := 0; i < 3; i++ {
			lo, hi := nums[2*i], nums[2*i+1]
			if hi < lo {
				return out, fmt.Errorf("%s: range for axis %d is decreasing", name, i)
			}
			out[i] = augment.Range{Lo: lo, Hi: hi}
		}
	default:
		return out, fmt.Errorf("%s: expected 1, 2, 3 or 6 numbers, got %d", name, len(nums))
	}
	return out, nil
}

// toIntRange reads a count: an integer n means (lo(n), n), a pair (a, b)
// means [a, b]
func toIntRange(name string, v Value, scalarLo func(int) int) (augment.IntRange, error) {
	ints, err := integers(name, v)
	if err != nil {
		return augment.IntRange{}, err
	}
	switch {
	case len(ints) == 1 && v.Type == NumberValue:
		return augment.IntRange{Lo: scalarLo(ints[0]), Hi: ints[0]}, nil
	case len(ints) == 1:
		return augment.IntRange{Lo: ints[0], Hi: ints[0]}, nil
	case len(ints) == 2 && ints[0] <= ints[1]:
		return augment.IntRange{Lo: ints[0], Hi: ints[1]}, nil
	}
	return augment.IntRange{}, fmt.Errorf("%s: expected an integer or (min, max), got %s", name, v.Repr())
}

func toInt(name string, v Value) (int, error) {
	if v.Type != NumberValue || v.Num != math.Trunc(v.Num) {
		return 0, fmt.Errorf("%s: expected an integer, got %s", name, v.Repr())
	}
	if v.IsInt {
		n, err := strconv.Atoi(v.digits())
		if err != nil {
			return 0, fmt.Errorf("%s: integer %s out of range", name, v.Repr())
		}
		return n, nil
	}
	if math.Abs(v.Num) > maxExactInt {
		return 0, fmt.Errorf("%s: integer %s out of range", name, v.Repr())
	}
	return int(v.Num), nil
}

// maxExactInt is the largest magnitude a float holds as an exact integer
const maxExactInt = 1 << 53

func toInts3(name string, v Value) ([3]int, error) {
	var out [3]int
	ints, err := integers(name, v)
	if err != nil {
		return out, err
	}
	switch len(ints) {
	case 1:
		out = [3]int{ints[0], ints[0], ints[0]}
	case 3:
		copy(out[:], ints)
	default:
		return out, fmt.Errorf("%s: expected 1 or 3 integers, got %d", name, len(ints))
	}
	return out, nil
}

func toFloats3(name string, v Value) ([3]float64, error) {
	var out [3]float64
	nums, err := numbers(name, v)
	if err != nil {
		return out, err
	}
	switch len(nums) {
	case 1:
		out = [3]float64{nums[0], nums[0], nums[0]}
	case 3:
		copy(out[:], nums)
	default:
		return out, fmt.Errorf("%s: expected 1 or 3 numbers, got %d", name, len(nums))
	}
	return out, nil
}

// anatomical maps the first letter of an orientation label to an array
// axis, assuming RAS storage
var anatomical = map[byte]int{
	'l': 0, 'r': 0,
	'a': 1, 'p': 1,
	'i': 2, 's': 2,
}

// toAxes reads axes given as integers 0-2 or anatomical labels such as
// 'lr', 'AP' or 'S'
func toAxes(name string, v Value) ([]int, error) {
	items := []Value{v}
	if v.Type == TupleValue {
		items = v.Items
	}
	axes := make([]int, 0, len(items))
	seen := map[int]bool{}
	for _, item := range items {
		var axis int
		switch item.Type {
		case NumberValue:
			a, err := toInt(name, item)
			if err != nil {
				return nil, err
			}
			axis = a
		case StringValue:
			label := strings.ToLower(strings.TrimSpace(item.Str))
			a, ok := -1, false
			if label != "" {
				a, ok = anatomical[label[0]]
			}
			if !ok {
				return nil, fmt.Errorf("%s: unknown axis label %q", name, item.Str)
			}
			axis = a
		default:
			return nil, fmt.Errorf("%s: nested tuples are not axes", name)
		}
		if axis < 0 || axis > 2 {
			return nil, fmt.Errorf("%s: axis %d out of range", name, axis)
		}
		if !seen[axis] {
			seen[axis] = true
			axes = append(axes, axis)
		}
	}
	return axes, nil
}
