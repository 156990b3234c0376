// Package registry resolves node type names to their declarative
// definitions. Lookup is pure: a given type always resolves to the same
// definition for the lifetime of the process, so results are cached.
package registry

import (
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vk/pipecanvas/internal/schema"
)

// cacheSize bounds the resolved-definition cache. The builtin catalog is far
// smaller; the headroom is for manifest-loaded types.
const cacheSize = 128

// DefinitionNotFoundError reports a node type with no registered definition.
type DefinitionNotFoundError struct {
	Type string
}

// Error implements the error interface.
func (e *DefinitionNotFoundError) Error() string {
	return fmt.Sprintf("no node definition registered for type %q", e.Type)
}

// Registry holds the node definitions known to one application instance.
type Registry struct {
	mu    sync.RWMutex
	defs  map[string]*schema.NodeDefinition
	cache *lru.Cache[string, *schema.NodeDefinition]
}

// New creates an empty Registry.
func New() *Registry {
	cache, err := lru.New[string, *schema.NodeDefinition](cacheSize)
	if err != nil {
		// lru.New only fails on a non-positive size.
		panic(err)
	}
	return &Registry{
		defs:  make(map[string]*schema.NodeDefinition),
		cache: cache,
	}
}

// NewWithBuiltins creates a Registry pre-populated with the builtin node
// catalog.
func NewWithBuiltins() *Registry {
	r := New()
	for _, def := range builtinDefinitions() {
		r.Register(def)
	}
	return r
}

// Register adds or replaces the definition for def's type.
func (r *Registry) Register(def *schema.NodeDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.Metadata.Type] = def
	r.cache.Remove(def.Metadata.Type)
}

// Load resolves a node type to its definition. It fails with
// *DefinitionNotFoundError for unknown types.
func (r *Registry) Load(nodeType string) (*schema.NodeDefinition, error) {
	if def, ok := r.cache.Get(nodeType); ok {
		return def, nil
	}

	r.mu.RLock()
	def, ok := r.defs[nodeType]
	r.mu.RUnlock()
	if !ok {
		return nil, &DefinitionNotFoundError{Type: nodeType}
	}

	r.cache.Add(nodeType, def)
	return def, nil
}

// Types returns the sorted list of registered node types.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.defs))
	for t := range r.defs {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
