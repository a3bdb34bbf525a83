package symbols

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNative(t *testing.T) {
	tcs := map[string]string{
		"_ZN3Foo3barEv":   "Foo::bar()",
		"__ZN3Foo3barEv":  "Foo::bar()",
		"__ZdlPv":         "operator delete(void*)",
		"_ZNK3Foo4sizeEv": "Foo::size() const",
	}
	for in, want := range tcs {
		got, ok := Native(in)
		if assert.True(t, ok, in) {
			assert.Equal(t, want, got, in)
		}
	}

	for _, in := range []string{"", "_main", "_$s4main3FooV", "__stub_helper"} {
		got, ok := Native(in)
		assert.False(t, ok, in)
		assert.Equal(t, in, got)
	}
}

type fakeForeign struct {
	calls   []string
	results map[string]string
	err     error
}

func (f *fakeForeign) Demangle(name string) (string, error) {
	f.calls = append(f.calls, name)
	if f.err != nil {
		return name, f.err
	}
	if out, ok := f.results[name]; ok {
		return out, nil
	}
	return name, nil
}

func TestResolverNeverForwardsNativeNames(t *testing.T) {
	fake := &fakeForeign{}
	r, err := NewResolver(fake, 16)
	require.NoError(t, err)

	for _, name := range []string{"_ZN3Foo3barEv", "__ZdlPv", "_main", "_objc_msgSend"} {
		_, err := r.Resolve(name)
		require.NoError(t, err)
	}

	assert.Empty(t, fake.calls)
	assert.Equal(t, Stats{Native: 2, Raw: 2}, r.Stats())
}

func TestResolverForwardsSwift(t *testing.T) {
	fake := &fakeForeign{results: map[string]string{
		"_$s4main3FooVMn": "nominal type descriptor for main.Foo",
	}}
	r, err := NewResolver(fake, 16)
	require.NoError(t, err)

	got, err := r.Resolve("_$s4main3FooVMn")
	require.NoError(t, err)
	assert.Equal(t, "nominal type descriptor for main.Foo", got)

	// unknown to the helper
	got, err = r.Resolve("_$sBogus")
	require.NoError(t, err)
	assert.Equal(t, "_$sBogus", got)

	// served from the cache
	got, err = r.Resolve("_$s4main3FooVMn")
	require.NoError(t, err)
	assert.Equal(t, "nominal type descriptor for main.Foo", got)

	assert.Equal(t, []string{"_$s4main3FooVMn", "_$sBogus"}, fake.calls)
	assert.Equal(t, Stats{Foreign: 2, Raw: 1, CacheHits: 1}, r.Stats())
}

func TestResolverWithoutCache(t *testing.T) {
	fake := &fakeForeign{}
	r, err := NewResolver(fake, 0)
	require.NoError(t, err)

	for range 3 {
		_, err := r.Resolve("_$s4main3FooV")
		require.NoError(t, err)
	}
	assert.Len(t, fake.calls, 3)
}

func TestResolverWithoutForeign(t *testing.T) {
	r, err := NewResolver(nil, 16)
	require.NoError(t, err)

	got, err := r.Resolve("_$s4main3FooV")
	require.NoError(t, err)
	assert.Equal(t, "_$s4main3FooV", got)
	assert.Equal(t, 1, r.Stats().Raw)
}

func TestResolverForeignError(t *testing.T) {
	fake := &fakeForeign{err: errors.New("echo mismatch")}
	r, err := NewResolver(fake, 16)
	require.NoError(t, err)

	got, err := r.Resolve("_$s4main3FooV")
	assert.Error(t, err)
	assert.Equal(t, "_$s4main3FooV", got)

	// errors are not cached
	_, err = r.Resolve("_$s4main3FooV")
	assert.Error(t, err)
	assert.Len(t, fake.calls, 2)
	assert.True(t, strings.HasPrefix(fake.calls[0], SwiftMarker))
}
