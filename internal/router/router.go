// Package router maps free-text requests to a guru agent identifier using an
// ordered keyword table. Routing never fails: text that matches nothing falls
// back to a fixed default guru.
package router

import (
	_ "embed"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/floguru/gurucore/internal/logger"
)

//go:embed routes.yaml
var defaultRoutesYAML []byte

// GuruID identifies a specialized agent.
type GuruID string

// Guru is one entry in the route table.
type Guru struct {
	ID       GuruID   `yaml:"id"`
	Emoji    string   `yaml:"emoji"`
	Keywords []string `yaml:"keywords"`
}

type routeTable struct {
	Gurus    []Guru `yaml:"gurus"`
	Fallback GuruID `yaml:"fallback"`
}

// Router performs first-match keyword routing. The table is immutable after
// construction.
type Router struct {
	gurus    []Guru
	folded   [][]string // folded keywords, parallel to gurus
	fallback Guru
	log      *logger.Logger
}

// New loads the built-in route table.
func New(log *logger.Logger) (*Router, error) {
	return NewFromYAML(defaultRoutesYAML, log)
}

// NewFromYAML builds a router from a YAML route table. Declaration order of
// the gurus is preserved: on ambiguous input the first listed match wins.
func NewFromYAML(data []byte, log *logger.Logger) (*Router, error) {
	var table routeTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse route table: %w", err)
	}
	if len(table.Gurus) == 0 {
		return nil, fmt.Errorf("route table has no gurus")
	}

	r := &Router{
		gurus: table.Gurus,
		log:   log,
	}

	for _, g := range table.Gurus {
		if g.ID == "" {
			return nil, fmt.Errorf("route table entry without id")
		}
		folded := make([]string, len(g.Keywords))
		for i, kw := range g.Keywords {
			folded[i] = cases.Fold().String(kw)
		}
		r.folded = append(r.folded, folded)
	}

	fallback, ok := r.lookup(table.Fallback)
	if !ok {
		return nil, fmt.Errorf("fallback guru %q not in route table", table.Fallback)
	}
	r.fallback = fallback

	return r, nil
}

func (r *Router) lookup(id GuruID) (Guru, bool) {
	for _, g := range r.gurus {
		if g.ID == id {
			return g, true
		}
	}
	return Guru{}, false
}

// Gurus returns the route table in declaration order.
func (r *Router) Gurus() []Guru {
	out := make([]Guru, len(r.gurus))
	copy(out, r.gurus)
	return out
}

// Fallback returns the default guru used when nothing matches.
func (r *Router) Fallback() Guru {
	return r.fallback
}

// Pick routes text to a guru. The text is case-folded and scanned against the
// table in declaration order; the first guru with any keyword substring match
// wins. Unmatched text routes to the fallback guru.
func (r *Router) Pick(text string) Guru {
	// cases.Caser is stateful, so a fresh one per call keeps Pick safe for
	// concurrent use.
	folded := cases.Fold().String(text)

	for i, g := range r.gurus {
		for _, kw := range r.folded[i] {
			if kw != "" && strings.Contains(folded, kw) {
				r.log.Debug("routed message",
					logger.Field{Key: "guru", Value: g.ID},
					logger.Field{Key: "keyword", Value: kw})
				return g
			}
		}
	}

	r.log.Debug("no route matched, using fallback",
		logger.Field{Key: "guru", Value: r.fallback.ID})
	return r.fallback
}
