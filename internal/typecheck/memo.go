package typecheck

import (
	"sync"

	"pyrite/internal/pysrc"
)

// LookupMemo caches the derived top-level binding set of imported modules.
// Checking "from b import X, Y, Z" needs b's bindings three times, and
// every module importing b needs them again; the memo computes them once.
// The driver clears it at chunk boundaries so entries never outlive the
// cache generation they were derived from.
type LookupMemo struct {
	mu       sync.Mutex
	bindings map[pysrc.Qualifier]map[string]struct{}
}

// NewLookupMemo returns an empty memo.
func NewLookupMemo() *LookupMemo {
	return &LookupMemo{bindings: make(map[pysrc.Qualifier]map[string]struct{})}
}

// Clear drops every cached binding set.
func (m *LookupMemo) Clear() {
	m.mu.Lock()
	m.bindings = make(map[pysrc.Qualifier]map[string]struct{})
	m.mu.Unlock()
}

// Bindings returns the names the module's top-level statements introduce.
// The returned map is shared; callers must not mutate it.
func (m *LookupMemo) Bindings(src *pysrc.Source) map[string]struct{} {
	m.mu.Lock()
	if b, ok := m.bindings[src.Qualifier]; ok {
		m.mu.Unlock()
		return b
	}
	m.mu.Unlock()

	b := collectBindings(src)

	m.mu.Lock()
	m.bindings[src.Qualifier] = b
	m.mu.Unlock()
	return b
}

func collectBindings(src *pysrc.Source) map[string]struct{} {
	b := make(map[string]struct{})
	for i := range src.Statements {
		st := &src.Statements[i]
		switch st.Kind {
		case pysrc.StmtDef, pysrc.StmtClass:
			b[st.Name] = struct{}{}
		case pysrc.StmtAssign:
			for _, t := range st.Targets {
				b[t] = struct{}{}
			}
		case pysrc.StmtImport, pysrc.StmtFromImport:
			for _, a := range st.Names {
				b[a.Binding()] = struct{}{}
			}
		}
	}
	return b
}
