package model

import (
	"fmt"
	"strings"
)

// Resource names one of the three shared resource kinds.
type Resource string

const (
	ResourceA Resource = "A"
	ResourceB Resource = "B"
	ResourceC Resource = "C"
)

// Pair is the two resources a task needs for every unit it executes.
type Pair struct {
	First  Resource `json:"first"`
	Second Resource `json:"second"`
}

func (p Pair) String() string {
	return fmt.Sprintf("(%s, %s)", p.First, p.Second)
}

// Kind is a task type. Each kind maps to exactly one resource pair.
type Kind string

const (
	KindX Kind = "X"
	KindY Kind = "Y"
	KindZ Kind = "Z"
)

// Kinds lists the task kinds from lowest to highest MLQ priority.
var Kinds = []Kind{KindX, KindY, KindZ}

var kindPairs = map[Kind]Pair{
	KindX: {ResourceA, ResourceB},
	KindY: {ResourceB, ResourceC},
	KindZ: {ResourceA, ResourceC},
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// Valid reports whether k is one of X, Y, Z.
func (k Kind) Valid() bool {
	_, ok := kindPairs[k]
	return ok
}

// Pair returns the resource pair required by tasks of this kind.
// It panics on an unknown kind; admission rejects those before a Task exists.
func (k Kind) Pair() Pair {
	p, ok := kindPairs[k]
	if !ok {
		panic(fmt.Sprintf("model: unknown task kind %q", string(k)))
	}
	return p
}

// Priority orders kinds for the multi-level policy: Z=2 > Y=1 > X=0.
func (k Kind) Priority() int {
	switch k {
	case KindZ:
		return 2
	case KindY:
		return 1
	default:
		return 0
	}
}

// ParseKind accepts "X", "Y" or "Z" (case-insensitive).
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown task kind %q (want X, Y or Z)", s)
	}
	return k, nil
}

// Resources holds one counter per resource kind.
type Resources struct {
	A int `json:"a" yaml:"a"`
	B int `json:"b" yaml:"b"`
	C int `json:"c" yaml:"c"`
}

// Get returns the counter for r.
func (r Resources) Get(res Resource) int {
	switch res {
	case ResourceA:
		return r.A
	case ResourceB:
		return r.B
	case ResourceC:
		return r.C
	}
	panic(fmt.Sprintf("model: unknown resource %q", string(res)))
}

// Add returns r with delta applied to the counter for res.
func (r Resources) Add(res Resource, delta int) Resources {
	switch res {
	case ResourceA:
		r.A += delta
	case ResourceB:
		r.B += delta
	case ResourceC:
		r.C += delta
	default:
		panic(fmt.Sprintf("model: unknown resource %q", string(res)))
	}
	return r
}

func (r Resources) String() string {
	return fmt.Sprintf("A=%d B=%d C=%d", r.A, r.B, r.C)
}
