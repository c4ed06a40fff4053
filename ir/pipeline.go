package ir

// Block is the top-level pattern of one pipeline stage (match, insert,
// delete, ...): a root conjunction plus the scope it was built in (spec.md
// §3 "Block").
type Block struct {
	RootScope ScopeID
	Root      *Conjunction
}

func NewBlock(scope ScopeID) *Block {
	return &Block{RootScope: scope, Root: NewConjunction(scope)}
}

// Equal compares two blocks up to a fresh variable bijection (spec.md §4.6).
func (b *Block) Equal(other *Block) bool {
	return b.Root.Equal(other.Root, NewVariableBijection())
}

// PipelineTranslationContext holds the registries a single query's
// translation from AST to IR shares across every pipeline stage: one
// VariableRegistry (variables can be reused/rebound across stages), one
// ParameterRegistry, and the ScopeTree linking every block's nested scopes
// (spec.md §4.6 "A PipelineTranslationContext holds a VariableRegistry...").
type PipelineTranslationContext struct {
	Variables  *VariableRegistry
	Parameters *ParameterRegistry
	Scopes     *ScopeTree
}

func NewPipelineTranslationContext() *PipelineTranslationContext {
	return &PipelineTranslationContext{
		Variables:  NewVariableRegistry(),
		Parameters: NewParameterRegistry(),
		Scopes:     NewScopeTree(),
	}
}

// NewRootBlock allocates a new root scope and wraps it in a fresh Block.
func (ctx *PipelineTranslationContext) NewRootBlock() *Block {
	return NewBlock(ctx.Scopes.Root())
}

func (ctx *PipelineTranslationContext) NewNestedConjunction(parent ScopeID) *Conjunction {
	return NewConjunction(ctx.Scopes.Child(parent))
}
