// Package query wires the compiler and executor packages into the
// annotate-compile-plan-execute pipeline one query runs through (spec.md §5
// "Query execution"), plus the plan cache that lets repeated structurally
// identical queries skip straight to planning's output. Grounded on the
// teacher's runtime/execution/plan/executor.go orchestration of
// generate-then-run stages, generalized from a shell command plan to a
// match/write pipeline.
package query

import (
	"errors"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/latticedb/lattice/compiler"
	"github.com/latticedb/lattice/concept"
	"github.com/latticedb/lattice/executable"
	"github.com/latticedb/lattice/executor"
	"github.com/latticedb/lattice/functions"
	"github.com/latticedb/lattice/ir"
	"github.com/latticedb/lattice/logging"
)

var log = logging.Named("query")

// PlanCache bounds the set of cached executable.Pipelines by a structural
// IR hash, so two queries that differ only in literal parameters or
// variable names share one compiled plan (spec.md §5 "Statistics are
// collected asynchronously"; SPEC_FULL §11 "bounded moka-style LRU keyed by
// structural IR hash").
type PlanCache struct {
	cache *lru.Cache[uint64, executable.Pipeline]
}

func NewPlanCache(size int) *PlanCache {
	c, err := lru.New[uint64, executable.Pipeline](size)
	if err != nil {
		panic(err) // size <= 0, a programmer error at construction time
	}
	return &PlanCache{cache: c}
}

func (pc *PlanCache) get(key uint64) (executable.Pipeline, bool) {
	return pc.cache.Get(key)
}

func (pc *PlanCache) put(key uint64, pipe executable.Pipeline) {
	pc.cache.Add(key, pipe)
}

// Manager runs one query's match/insert/delete stages against a snapshot
// (spec.md §4.7-4.8). It holds no per-query state; every field is shared
// read-only infrastructure, safe for concurrent use by multiple in-flight
// queries (spec.md §5 "Concurrency").
type Manager struct {
	Types     *concept.TypeManager
	Things    *concept.ThingManager
	Functions *functions.Registry
	Stats     *compiler.Statistics
	Cache     *PlanCache
}

// NewManager builds a Manager with a fresh, empty plan cache of the given
// bound.
func NewManager(types *concept.TypeManager, things *concept.ThingManager, reg *functions.Registry, cacheSize int) *Manager {
	return &Manager{
		Types:     types,
		Things:    things,
		Functions: reg,
		Stats:     compiler.NewStatistics(),
		Cache:     NewPlanCache(cacheSize),
	}
}

// Plan returns block's compiled Pipeline, reusing a cached plan when an
// earlier query produced a structurally identical block (spec.md §8
// "Structural equality is an equivalence"). It refuses to plan a block
// whose annotation carries unresolved labels, surfacing every one of them
// rather than failing opaquely deep inside the planner.
func (m *Manager) Plan(block *ir.Block, ann *compiler.Annotation, roleResolver func(label string) uint16) (executable.Pipeline, error) {
	if len(ann.Errors) > 0 {
		return executable.Pipeline{}, errors.Join(ann.Errors...)
	}
	key := block.Root.StructuralHash64()
	if m.Cache != nil {
		if cached, ok := m.Cache.get(key); ok {
			log.Debug("plan cache hit", zap.Uint64("query_hash", key))
			return cached, nil
		}
	}
	planner := compiler.NewPlanner(m.Stats, ann)
	if roleResolver != nil {
		planner = planner.WithRoleResolver(roleResolver)
	}
	pipe := planner.PlanBlock(block)
	if m.Cache != nil {
		m.Cache.put(key, pipe)
	}
	log.Debug("planned query", zap.Uint64("query_hash", key), zap.Int("instructions", len(pipe.Instructions)))
	return pipe, nil
}

// Annotate runs type inference over block (spec.md §4.6 "Annotation").
func (m *Manager) Annotate(block *ir.Block, vars *ir.VariableRegistry) *compiler.Annotation {
	return compiler.NewAnnotator(m.Types).AnnotateBlock(block, vars)
}

// Run executes a fully compiled match pipeline to completion, resolving any
// function calls it contains through a Tabler seeded from the pinned
// snapshot of m.Functions (spec.md Open Question #2: function bodies are
// pinned at query-start, not re-resolved per call).
func (m *Manager) Run(reader concept.KVReader, params *ir.ParameterRegistry, width int, pipe *executable.Pipeline) (*executor.Batch, error) {
	traceID := uuid.New()
	log.Debug("executing query", zap.String("trace_id", traceID.String()), zap.Int("instructions", len(pipe.Instructions)))
	exec := executor.NewMatchExecutor(reader, m.Types, m.Things, params, width)
	if m.Functions != nil {
		executor.NewTabler(exec, m.Functions.All())
	}
	batch, err := exec.Run(pipe)
	if err != nil {
		log.Debug("query failed", zap.String("trace_id", traceID.String()), zap.Error(err))
		return nil, err
	}
	log.Debug("query completed", zap.String("trace_id", traceID.String()), zap.Int("rows", batch.Len()))
	return batch, nil
}
