// Package engine ties the front-end together: one Context owns the
// pool allocator, the literal table and the compiler, with an
// explicit init/finalize lifecycle bracketing each engine lifetime.
package engine

import (
	"fmt"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/shrikejs/shrike/compiler"
	"github.com/shrikejs/shrike/lit"
	"github.com/shrikejs/shrike/mem"
)

var log = commonlog.GetLogger("shrike.engine")

// Context is one engine instance. The compiler is single-threaded;
// all shared state lives here and nowhere else.
type Context struct {
	cfg Config

	Heap     *mem.Heap
	Pools    *mem.Pools
	Literals *lit.Table
	Compiler *compiler.Compiler

	finalized bool
}

// Init builds an engine context from the given configuration.
func Init(cfg Config) *Context {
	heap := mem.NewHeap(cfg.Heap.MaxBlocks)
	pools := mem.NewPools(heap)

	ctx := &Context{
		cfg:      cfg,
		Heap:     heap,
		Pools:    pools,
		Literals: lit.NewTable(pools),
	}
	ctx.Compiler = compiler.New(ctx.Literals)
	ctx.Compiler.SetShowInstructions(cfg.Debug.ShowInstructions)

	log.Debugf("engine context up: %d-byte chunks, %d per pool", mem.ChunkSize, mem.PoolChunks)
	return ctx
}

// SetShowInstructions toggles debug dumping of compiled instructions.
func (c *Context) SetShowInstructions(show bool) {
	c.Compiler.SetShowInstructions(show)
}

// CompileScript compiles a program.
func (c *Context) CompileScript(source []byte) compiler.Result {
	return c.Compiler.ParseScript(source)
}

// CompileEval compiles eval code.
func (c *Context) CompileEval(source []byte, inheritedStrict bool) compiler.Result {
	return c.Compiler.ParseEval(source, inheritedStrict)
}

// Finalize releases the literal table, compacts the pools and
// verifies nothing leaked. The context is unusable afterwards.
func (c *Context) Finalize() error {
	if c.finalized {
		return fmt.Errorf("engine: context finalized twice")
	}
	c.finalized = true

	c.Literals.Release()
	if err := c.Pools.Finalize(); err != nil {
		return err
	}

	log.Debug("engine context down")
	return nil
}
