// Package symbolicate fills in the redacted frames of Apple crash reports
// from a symbol database.
package symbolicate

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/apex/log"
	"github.com/blacktop/symdb/internal/colors"
	"github.com/blacktop/symdb/internal/db"
	"github.com/blacktop/symdb/internal/model"
	lru "github.com/hashicorp/golang-lru/v2"
)

// 7   Foundation    0x0000000199bc8500 0x199b11000 + 750848 (<redacted> + 212)
var frameRE = regexp.MustCompile(`(?m)^(?P<index>\s*\d+\s+)(?P<lib>\S+)\s+0x(?P<abs>[0-9a-fA-F]+)\s+0x(?P<base>[0-9a-fA-F]+)\s+\+\s+(?P<offset>\d+)\s+\((?P<symbol>.+)\s+\+\s+(?P<delta>\d+)\)$`)

type lookupResult struct {
	name  string
	found bool
}

// Result is a symbolicated crash report.
type Result struct {
	Text     string
	Meta     Metadata
	Frames   int
	Resolved int
}

type Symbolicator struct {
	db        db.Database
	cache     *lru.Cache[model.SymbolQuery, lookupResult]
	highlight bool
}

// New returns a symbolicator reading from d. When highlight is set frame
// offsets and symbols are colored, unresolved ones included.
func New(d db.Database, cacheSize int, highlight bool) (*Symbolicator, error) {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	cache, err := lru.New[model.SymbolQuery, lookupResult](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create lookup cache: %w", err)
	}
	return &Symbolicator{db: d, cache: cache, highlight: highlight}, nil
}

func (s *Symbolicator) lookup(q model.SymbolQuery) (lookupResult, error) {
	if r, ok := s.cache.Get(q); ok {
		return r, nil
	}
	var r lookupResult
	sym, err := s.db.LookupSymbol(q)
	switch {
	case err == nil:
		r = lookupResult{name: sym.Name, found: true}
	case errors.Is(err, model.ErrNotFound):
	default:
		return r, err
	}
	s.cache.Add(q, r)
	return r, nil
}

// Symbolicate rewrites every stack frame whose image offset is a known symbol
// start, trying the app build first and then the OS build.
func (s *Symbolicator) Symbolicate(text string) (*Result, error) {
	res := &Result{Meta: ParseMetadata(text)}
	if res.Meta.Arch == "" {
		log.Warn("crash report has no Code Type, frames will not resolve")
	}

	var (
		symIdx  = 2 * frameRE.SubexpIndex("symbol")
		baseIdx = 2 * frameRE.SubexpIndex("base")
		offIdx  = 2 * frameRE.SubexpIndex("offset")
	)

	var lookupErr error
	res.Text = frameRE.ReplaceAllStringFunc(text, func(line string) string {
		if lookupErr != nil {
			return line
		}
		m := frameRE.FindStringSubmatchIndex(line)
		if m == nil {
			return line
		}
		res.Frames++

		group := func(name string) string {
			i := 2 * frameRE.SubexpIndex(name)
			return line[m[i]:m[i+1]]
		}
		offset, err := strconv.ParseInt(group("offset"), 10, 64)
		if err != nil {
			return line
		}
		delta, err := strconv.ParseInt(group("delta"), 10, 64)
		if err != nil {
			return line
		}

		var name string
		for _, build := range []string{res.Meta.AppBuild, res.Meta.OSBuild} {
			if build == "" {
				continue
			}
			r, err := s.lookup(model.SymbolQuery{
				Build:   build,
				Arch:    res.Meta.Arch,
				File:    group("lib"),
				Address: offset - delta,
			})
			if err != nil {
				lookupErr = err
				return line
			}
			if r.found {
				name = r.name
				break
			}
		}
		if name != "" {
			res.Resolved++
		}

		if !s.highlight {
			if name == "" {
				return line
			}
			return line[:m[symIdx]] + name + line[m[symIdx+1]:]
		}

		// "0x<base> + <offset>"
		addrStart, addrEnd := m[baseIdx]-len("0x"), m[offIdx+1]
		sym := colors.Missing().Sprint(line[m[symIdx]:m[symIdx+1]])
		if name != "" {
			sym = colors.Symbol().Sprint(name)
		}
		return line[:addrStart] + colors.Address().Sprint(line[addrStart:addrEnd]) +
			line[addrEnd:m[symIdx]] + sym + line[m[symIdx+1]:]
	})
	if lookupErr != nil {
		return nil, fmt.Errorf("failed to look up symbol: %w", lookupErr)
	}

	return res, nil
}
