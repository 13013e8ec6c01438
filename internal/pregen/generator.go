package pregen

import (
	"log/slog"

	"github.com/roach88/speciate/internal/codegen"
	"github.com/roach88/speciate/internal/ir"
	"github.com/roach88/speciate/internal/lform"
)

// Emitter generates named units. Implemented by *codegen.Bridge.
type Emitter interface {
	Container() string
	Emit(name string, f *lform.Form) (*codegen.Unit, error)
}

// Request lists everything Generate should produce.
type Request struct {
	BasicForms bool
	Direct     []ir.MethodType
	Delegating []ir.MethodType
	Invokers   []ir.MethodType
	CallSites  []ir.MethodType
	Species    []string
}

// Generator builds bundles from a form catalog through an emitter.
//
// Thread-safety: a Generator holds no mutable state of its own and is
// safe for concurrent use if its emitter is.
type Generator struct {
	emitter Emitter
	catalog *lform.Catalog
	ids     IDGenerator
	logger  *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithIDGenerator sets the bundle id source.
//
// Default: UUIDv7Generator
func WithIDGenerator(ids IDGenerator) Option {
	return func(g *Generator) {
		g.ids = ids
	}
}

// WithLogger sets the logger for skipped units.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = l
	}
}

// New creates a generator.
func New(e Emitter, c *lform.Catalog, opts ...Option) *Generator {
	g := &Generator{
		emitter: e,
		catalog: c,
		ids:     UUIDv7Generator{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// collector accumulates one bundle, skipping names already emitted.
type collector struct {
	g      *Generator
	bundle *Bundle
	names  map[string]bool
}

func (g *Generator) begin(section Section) *collector {
	return &collector{
		g: g,
		bundle: &Bundle{
			Section:   section,
			Container: g.emitter.Container(),
		},
		names: make(map[string]bool),
	}
}

// add emits f under its unit name unless the name is already present.
// Backend rejections are logged and skipped; anything else aborts.
func (c *collector) add(f *lform.Form) error {
	name := codegen.UnitName(c.bundle.Container, f)
	if c.names[name] {
		return nil
	}
	c.names[name] = true

	u, err := c.g.emitter.Emit(name, f)
	if err != nil {
		if !ir.IsBackendError(err) {
			return err
		}
		c.g.logger.Warn("pregeneration skipped unit", "name", name, "error", err)
		c.bundle.Skipped = append(c.bundle.Skipped, Skip{Name: name, Error: err.Error()})
		return nil
	}
	c.bundle.Units = append(c.bundle.Units, u)
	return nil
}

func (c *collector) finish() (*Bundle, error) {
	if err := c.bundle.seal(); err != nil {
		return nil, err
	}
	c.bundle.ID = c.g.ids.Generate()
	c.g.logger.Debug("bundle generated",
		"id", c.bundle.ID,
		"section", c.bundle.Section,
		"units", len(c.bundle.Units),
		"layouts", len(c.bundle.Layouts),
		"skipped", len(c.bundle.Skipped))
	return c.bundle, nil
}

// BasicForms returns the zero and identity units of every basic type.
// The identity of void is the zero of void, so it appears once.
func (g *Generator) BasicForms() (*Bundle, error) {
	c := g.begin(SectionBasicForms)
	if err := g.addBasicForms(c); err != nil {
		return nil, err
	}
	return c.finish()
}

func (g *Generator) addBasicForms(c *collector) error {
	for _, bt := range ir.AllBasicTypes {
		z, err := g.catalog.Zero(bt)
		if err != nil {
			return err
		}
		if err := c.add(z); err != nil {
			return err
		}
		id, err := g.catalog.Identity(bt)
		if err != nil {
			return err
		}
		if err := c.add(id); err != nil {
			return err
		}
	}
	return nil
}

// DirectHolder returns one direct unit per distinct call shape.
func (g *Generator) DirectHolder(types []ir.MethodType) (*Bundle, error) {
	c := g.begin(SectionDirect)
	if err := g.addDirect(c, types); err != nil {
		return nil, err
	}
	return c.finish()
}

func (g *Generator) addDirect(c *collector, types []ir.MethodType) error {
	for _, mt := range distinct(types) {
		f, err := g.catalog.Direct(mt)
		if err != nil {
			return err
		}
		if err := c.add(f); err != nil {
			return err
		}
	}
	return nil
}

// DelegatingHolder returns a reinvoker and a delegate unit per distinct
// call shape.
func (g *Generator) DelegatingHolder(types []ir.MethodType) (*Bundle, error) {
	c := g.begin(SectionDelegating)
	if err := g.addDelegating(c, types); err != nil {
		return nil, err
	}
	return c.finish()
}

func (g *Generator) addDelegating(c *collector, types []ir.MethodType) error {
	for _, mt := range distinct(types) {
		re, err := g.catalog.Reinvoker(mt)
		if err != nil {
			return err
		}
		if err := c.add(re); err != nil {
			return err
		}
		del, err := g.catalog.Delegate(mt)
		if err != nil {
			return err
		}
		if err := c.add(del); err != nil {
			return err
		}
	}
	return nil
}

// InvokersHolder returns an invoker unit per distinct invoker shape and a
// call site unit per distinct call site shape.
func (g *Generator) InvokersHolder(invokers, callSites []ir.MethodType) (*Bundle, error) {
	c := g.begin(SectionInvokers)
	if err := g.addInvokers(c, invokers, callSites); err != nil {
		return nil, err
	}
	return c.finish()
}

func (g *Generator) addInvokers(c *collector, invokers, callSites []ir.MethodType) error {
	for _, mt := range distinct(invokers) {
		f, err := g.catalog.Invoker(mt)
		if err != nil {
			return err
		}
		if err := c.add(f); err != nil {
			return err
		}
	}
	for _, mt := range distinct(callSites) {
		f, err := g.catalog.CallSite(mt)
		if err != nil {
			return err
		}
		if err := c.add(f); err != nil {
			return err
		}
	}
	return nil
}

// ConcreteSpecies returns the record layouts of the given signature keys.
// Every character must be one of LIJFD.
func (g *Generator) ConcreteSpecies(keys []string) (*Bundle, error) {
	c := g.begin(SectionSpecies)
	if err := g.addSpecies(c, keys); err != nil {
		return nil, err
	}
	return c.finish()
}

func (g *Generator) addSpecies(c *collector, keys []string) error {
	reg := g.catalog.Registry()
	seen := make(map[string]bool)
	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true
		if err := ir.ValidateKey(key, reg.MaxFields()); err != nil {
			return err
		}
		s, err := reg.Find(key)
		if err != nil {
			return err
		}
		src, err := codegen.SpeciesSource(s)
		if err != nil {
			return err
		}
		c.bundle.Layouts = append(c.bundle.Layouts, Layout{Key: key, Name: s.Name(), Source: src})
	}
	return nil
}

// Generate produces one bundle covering every section of req. Unit names
// are unique across sections.
func (g *Generator) Generate(req Request) (*Bundle, error) {
	c := g.begin(SectionAll)
	if err := g.addSpecies(c, req.Species); err != nil {
		return nil, err
	}
	if req.BasicForms {
		if err := g.addBasicForms(c); err != nil {
			return nil, err
		}
	}
	if err := g.addDirect(c, req.Direct); err != nil {
		return nil, err
	}
	if err := g.addDelegating(c, req.Delegating); err != nil {
		return nil, err
	}
	if err := g.addInvokers(c, req.Invokers, req.CallSites); err != nil {
		return nil, err
	}
	return c.finish()
}

// distinct drops repeated call shapes, keeping first occurrences.
func distinct(types []ir.MethodType) []ir.MethodType {
	seen := make(map[string]bool, len(types))
	out := make([]ir.MethodType, 0, len(types))
	for _, mt := range types {
		k := mt.String()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, mt)
	}
	return out
}
