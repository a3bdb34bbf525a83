package symbols

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ForeignDemangler demangles names the native demangler can't handle.
// Implementations return the input unchanged when they have no answer.
type ForeignDemangler interface {
	Demangle(name string) (string, error)
}

// Stats counts how each name passed to Resolve was resolved.
type Stats struct {
	Native    int
	Foreign   int
	Raw       int
	CacheHits int
}

// Resolver turns raw symbol names into readable ones.
// It is not safe for concurrent use.
type Resolver struct {
	foreign ForeignDemangler
	cache   *lru.Cache[string, string]
	stats   Stats
}

// NewResolver returns a resolver that forwards Swift names to foreign.
// foreign may be nil. A cacheSize <= 0 disables memoizing foreign results.
func NewResolver(foreign ForeignDemangler, cacheSize int) (*Resolver, error) {
	r := &Resolver{foreign: foreign}
	if cacheSize > 0 {
		cache, err := lru.New[string, string](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create demangle cache: %w", err)
		}
		r.cache = cache
	}
	return r, nil
}

// Resolve returns the best available name. Names demangled natively are never
// forwarded; only Swift names reach the foreign demangler. An error is only
// returned when the foreign demangler fails.
func (r *Resolver) Resolve(name string) (string, error) {
	if out, ok := Native(name); ok {
		r.stats.Native++
		return out, nil
	}
	if r.foreign == nil || !IsSwift(name) {
		r.stats.Raw++
		return name, nil
	}

	out, hit := "", false
	if r.cache != nil {
		out, hit = r.cache.Get(name)
	}
	if hit {
		r.stats.CacheHits++
	} else {
		var err error
		if out, err = r.foreign.Demangle(name); err != nil {
			return name, err
		}
		if r.cache != nil {
			r.cache.Add(name, out)
		}
	}

	if out == "" || out == name {
		r.stats.Raw++
		return name, nil
	}
	r.stats.Foreign++
	return out, nil
}

// Stats returns the counters accumulated so far.
func (r *Resolver) Stats() Stats { return r.stats }
