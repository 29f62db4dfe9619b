package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/halflife/core/config"
)

func TestDeepMergeStructs(t *testing.T) {
	type Inner struct {
		Value int
		Name  string
	}
	type Outer struct {
		Inner Inner
		Count int
	}

	dst := &Outer{Inner: Inner{Value: 1, Name: "original"}, Count: 10}
	src := &Outer{Inner: Inner{Value: 2}}

	require.NoError(t, config.DeepMerge(dst, src))
	assert.Equal(t, 2, dst.Inner.Value)
	assert.Equal(t, "original", dst.Inner.Name)
	assert.Equal(t, 10, dst.Count, "zero value shouldn't override")
}

func TestDeepMergeMaps(t *testing.T) {
	type S struct {
		M map[string]int
	}

	shared := map[string]int{"a": 1, "b": 2}
	dst := &S{M: shared}
	src := &S{M: map[string]int{"b": 20, "c": 3}}

	require.NoError(t, config.DeepMerge(dst, src))
	assert.Equal(t, map[string]int{"a": 1, "b": 20, "c": 3}, dst.M)
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, shared)
}

func TestDeepMergeNilMap(t *testing.T) {
	type S struct {
		M map[string]int
	}

	dst := &S{}
	require.NoError(t, config.DeepMerge(dst, &S{M: map[string]int{"a": 1}}))
	assert.Equal(t, 1, dst.M["a"])
}

func TestDeepMergeSlices(t *testing.T) {
	type S struct {
		Items []string
	}

	dst := &S{Items: []string{"a", "b"}}
	require.NoError(t, config.DeepMerge(dst, &S{Items: []string{}}))
	assert.Equal(t, []string{"a", "b"}, dst.Items, "empty slice shouldn't overwrite")

	src := &S{Items: []string{"x", "y", "z"}}
	require.NoError(t, config.DeepMerge(dst, src))
	assert.Equal(t, []string{"x", "y", "z"}, dst.Items)

	src.Items[0] = "mutated"
	assert.Equal(t, "x", dst.Items[0])
}

func TestDeepMergePointers(t *testing.T) {
	type Inner struct {
		A, B int
	}
	type S struct {
		P *Inner
	}

	orig := &Inner{A: 1, B: 2}
	dst := &S{P: orig}
	require.NoError(t, config.DeepMerge(dst, &S{P: &Inner{B: 5}}))
	assert.Equal(t, Inner{A: 1, B: 5}, *dst.P)
	assert.Equal(t, Inner{A: 1, B: 2}, *orig)

	empty := &S{}
	require.NoError(t, config.DeepMerge(empty, &S{P: &Inner{A: 9}}))
	assert.Equal(t, 9, empty.P.A)
}

func TestDeepMergeTargets(t *testing.T) {
	type S struct{ N int }

	assert.ErrorIs(t, config.DeepMerge(S{}, &S{}), config.ErrMergeTarget)
	assert.ErrorIs(t, config.DeepMerge(&S{}, &struct{ N int }{}), config.ErrMergeTarget)
	assert.ErrorIs(t, config.DeepMerge((*S)(nil), &S{}), config.ErrMergeTarget)
	assert.NoError(t, config.DeepMerge(&S{N: 1}, (*S)(nil)))
}

func TestDeepMergeConfig(t *testing.T) {
	dst := config.DefaultConfig()
	src := &config.Config{
		Log:   config.LogConfig{Format: "json"},
		Query: config.DefaultConfig().Query,
	}
	src.Query.Workers = 12

	require.NoError(t, config.DeepMerge(dst, src))
	assert.Equal(t, "json", dst.Log.Format)
	assert.Equal(t, "info", dst.Log.Level)
	assert.Equal(t, 12, dst.Query.Workers)
	assert.Equal(t, 4, dst.Datasheet.Concurrency)
}
