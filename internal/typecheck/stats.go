package typecheck

import "pyrite/internal/pysrc"

// AnnotationStats counts annotation coverage over one or more modules.
type AnnotationStats struct {
	FunctionCount          int `json:"function_count"`
	FullyAnnotated         int `json:"fully_annotated_function_count"`
	PartiallyAnnotated     int `json:"partially_annotated_function_count"`
	ReturnCount            int `json:"return_count"`
	AnnotatedReturnCount   int `json:"annotated_return_count"`
	ParamCount             int `json:"parameter_count"`
	AnnotatedParamCount    int `json:"annotated_parameter_count"`
	GlobalCount            int `json:"global_count"`
	AnnotatedGlobalCount   int `json:"annotated_global_count"`
	AttributeCount         int `json:"attribute_count"`
	AnnotatedAttributeCount int `json:"annotated_attribute_count"`
}

// Add accumulates other into s.
func (s *AnnotationStats) Add(other AnnotationStats) {
	s.FunctionCount += other.FunctionCount
	s.FullyAnnotated += other.FullyAnnotated
	s.PartiallyAnnotated += other.PartiallyAnnotated
	s.ReturnCount += other.ReturnCount
	s.AnnotatedReturnCount += other.AnnotatedReturnCount
	s.ParamCount += other.ParamCount
	s.AnnotatedParamCount += other.AnnotatedParamCount
	s.GlobalCount += other.GlobalCount
	s.AnnotatedGlobalCount += other.AnnotatedGlobalCount
	s.AttributeCount += other.AttributeCount
	s.AnnotatedAttributeCount += other.AnnotatedAttributeCount
}

// ModuleStats is the per-module statistics record.
type ModuleStats struct {
	Qualifier   pysrc.Qualifier `json:"qualifier"`
	Path        string          `json:"path"`
	Mode        string          `json:"mode"`
	Annotations AnnotationStats `json:"annotations"`
	Fixmes      map[int]int     `json:"fixmes"` // code -> count, 0 = bare fixme
	Ignores     int             `json:"ignores"`
}

// Aggregate sums module statistics across a project.
type Aggregate struct {
	ModuleCount int             `json:"module_count"`
	Annotations AnnotationStats `json:"annotations"`
	Fixmes      map[int]int     `json:"fixmes"`
	Ignores     int             `json:"ignores"`
	Modes       map[string]int  `json:"modes"`
}

// Add folds one module's statistics into the aggregate.
func (a *Aggregate) Add(ms ModuleStats) {
	a.ModuleCount++
	a.Annotations.Add(ms.Annotations)
	if a.Fixmes == nil {
		a.Fixmes = make(map[int]int)
	}
	for code, n := range ms.Fixmes {
		a.Fixmes[code] += n
	}
	a.Ignores += ms.Ignores
	if a.Modes == nil {
		a.Modes = make(map[string]int)
	}
	a.Modes[ms.Mode]++
}

// CollectStats walks one module's tree and comment markers. Assignments at
// the top level count as globals, assignments directly inside a class body
// as attributes. Defs count wherever they nest; the first parameter of a
// method is implicit and skipped when named self or cls.
func CollectStats(src *pysrc.Source) ModuleStats {
	ms := ModuleStats{
		Qualifier: src.Qualifier,
		Path:      src.Path,
		Mode:      src.TypedMode.String(),
		Fixmes:    make(map[int]int),
		Ignores:   len(src.IgnoreLines),
	}
	collectStmts(&ms.Annotations, src.Statements, scopeModule)
	for _, code := range src.FixmeCodes {
		ms.Fixmes[code]++
	}
	return ms
}

type statScope uint8

const (
	scopeModule statScope = iota
	scopeClass
	scopeDef
)

func collectStmts(s *AnnotationStats, stmts []pysrc.Statement, scope statScope) {
	for i := range stmts {
		st := &stmts[i]
		switch st.Kind {
		case pysrc.StmtDef:
			collectDef(s, st, scope)
			collectStmts(s, st.Body, scopeDef)
		case pysrc.StmtClass:
			collectStmts(s, st.Body, scopeClass)
		case pysrc.StmtAssign:
			switch scope {
			case scopeModule:
				s.GlobalCount++
				if st.Annotated {
					s.AnnotatedGlobalCount++
				}
			case scopeClass:
				s.AttributeCount++
				if st.Annotated {
					s.AnnotatedAttributeCount++
				}
			}
		}
	}
}

func collectDef(s *AnnotationStats, st *pysrc.Statement, scope statScope) {
	s.FunctionCount++
	s.ReturnCount++
	if st.ReturnsAnn {
		s.AnnotatedReturnCount++
	}

	params := st.Params
	if scope == scopeClass && len(params) > 0 && (params[0].Name == "self" || params[0].Name == "cls") {
		params = params[1:]
	}
	annotated := 0
	for _, p := range params {
		s.ParamCount++
		if p.Annotated {
			s.AnnotatedParamCount++
			annotated++
		}
	}

	full := st.ReturnsAnn && annotated == len(params)
	partial := st.ReturnsAnn || annotated > 0
	switch {
	case full:
		s.FullyAnnotated++
	case partial:
		s.PartiallyAnnotated++
	}
}
