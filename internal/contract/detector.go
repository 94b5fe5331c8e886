package contract

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"regexp"
	"strings"

	"ScanRunner/internal/domain/models"
	"ScanRunner/internal/recovery"
)

// Detector classifies a scanner's primary entry point from its source
// text. Scanners are authored independently, so the shapes vary: the
// detector reduces them to the closed variant set the adapter understands.
type Detector struct{}

func New() *Detector { return &Detector{} }

var (
	perTickerRe = regexp.MustCompile(`^(scan|analyze|check|detect|process).*(ticker|symbol)`)
	batchRe     = regexp.MustCompile(`^(scan|fetch|process|run)all|fordate|bydate`)
)

// groupedFetchCalls are the market-wide fetch primitives whose use marks a
// scanner as already full-market (optimal/pass-through).
var groupedFetchCalls = map[string]bool{
	"GroupedDaily":   true,
	"MarketSnapshot": true,
	"FetchGrouped":   true,
}

var symbolListNames = regexp.MustCompile(`^(symbols?|tickers?|universe|watchlist)$`)

type entryPoint struct {
	name     string
	lower    string
	nparams  int
	hasCtx   bool
	ctxOnly  bool
}

// Detect parses the source and classifies its entry point by priority:
// ctx-only main/run, per-ticker entry, batch/date entry, plain main,
// then first function taking at least one parameter. Ties within one
// priority break by first-encountered order.
func (d *Detector) Detect(scannerID, src string) (models.Contract, *models.Failure) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "scanner.go", src, 0)
	if err != nil {
		f := recovery.Classify(scannerID, "", fmt.Errorf("%w: %v", recovery.ErrSourceInvalid, err))
		return models.Contract{}, f
	}

	var entries []entryPoint
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}
		entries = append(entries, describe(fn))
	}
	if len(entries) == 0 {
		f := recovery.Classify(scannerID, "", fmt.Errorf("%w: no functions declared", recovery.ErrSourceInvalid))
		return models.Contract{}, f
	}

	c := classify(entries)
	if c.Entry == "" {
		f := recovery.Classify(scannerID, "", fmt.Errorf("%w: no callable entry point", recovery.ErrEntryPointNotFound))
		return models.Contract{}, f
	}

	// A full-market scanner that fetches grouped data itself and carries
	// no hardcoded symbol list runs as-is, skipping per-ticker adaptation.
	if c.Variant != models.VariantPerTicker && usesGroupedFetch(file) && !hasSymbolList(file) {
		c.Variant = models.VariantOptimal
	}
	return c, nil
}

func describe(fn *ast.FuncDecl) entryPoint {
	e := entryPoint{name: fn.Name.Name, lower: strings.ToLower(fn.Name.Name)}
	if fn.Type.Params != nil {
		for _, field := range fn.Type.Params.List {
			n := len(field.Names)
			if n == 0 {
				n = 1
			}
			e.nparams += n
		}
		if len(fn.Type.Params.List) > 0 && isContextType(fn.Type.Params.List[0].Type) {
			e.hasCtx = true
		}
	}
	e.ctxOnly = e.hasCtx && e.nparams == 1
	return e
}

func isContextType(expr ast.Expr) bool {
	sel, ok := expr.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	pkg, ok := sel.X.(*ast.Ident)
	return ok && pkg.Name == "context" && sel.Sel.Name == "Context"
}

func classify(entries []entryPoint) models.Contract {
	// Priority 1: cooperatively-suspending main with no other parameters.
	for _, e := range entries {
		if isMainName(e.lower) && e.ctxOnly {
			return models.Contract{Entry: e.name, Variant: models.VariantAsyncMain, Suspension: models.SuspensionCooperative}
		}
	}
	// Priority 2: per-ticker entry.
	for _, e := range entries {
		if perTickerRe.MatchString(e.lower) {
			return models.Contract{Entry: e.name, Variant: models.VariantPerTicker, Suspension: suspension(e)}
		}
	}
	// Priority 3: batch / date entry.
	for _, e := range entries {
		if batchRe.MatchString(e.lower) {
			return models.Contract{Entry: e.name, Variant: models.VariantBatch, Suspension: suspension(e)}
		}
	}
	// Priority 4: plain synchronous main.
	for _, e := range entries {
		if isMainName(e.lower) {
			return models.Contract{Entry: e.name, Variant: models.VariantSyncMain, Suspension: suspension(e)}
		}
	}
	// Priority 5: first function with at least one parameter.
	for _, e := range entries {
		if e.nparams >= 1 {
			return models.Contract{Entry: e.name, Variant: models.VariantGeneric, Suspension: suspension(e)}
		}
	}
	return models.Contract{}
}

func isMainName(lower string) bool {
	return lower == "main" || lower == "run"
}

func suspension(e entryPoint) models.SuspensionKind {
	if e.hasCtx {
		return models.SuspensionCooperative
	}
	return models.SuspensionNone
}

func usesGroupedFetch(file *ast.File) bool {
	found := false
	ast.Inspect(file, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		switch fn := call.Fun.(type) {
		case *ast.SelectorExpr:
			if groupedFetchCalls[fn.Sel.Name] {
				found = true
				return false
			}
		case *ast.Ident:
			if groupedFetchCalls[fn.Name] {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// hasSymbolList looks for a hardcoded non-empty []string assigned to a
// symbols/tickers-style variable.
func hasSymbolList(file *ast.File) bool {
	found := false
	ast.Inspect(file, func(n ast.Node) bool {
		var name string
		var rhs ast.Expr
		switch st := n.(type) {
		case *ast.AssignStmt:
			if len(st.Lhs) != 1 || len(st.Rhs) != 1 {
				return true
			}
			id, ok := st.Lhs[0].(*ast.Ident)
			if !ok {
				return true
			}
			name, rhs = id.Name, st.Rhs[0]
		case *ast.ValueSpec:
			if len(st.Names) != 1 || len(st.Values) != 1 {
				return true
			}
			name, rhs = st.Names[0].Name, st.Values[0]
		default:
			return true
		}
		if !symbolListNames.MatchString(strings.ToLower(name)) {
			return true
		}
		lit, ok := rhs.(*ast.CompositeLit)
		if ok && len(lit.Elts) > 0 {
			found = true
			return false
		}
		return true
	})
	return found
}

// Fallbacks lists the lower-priority variants to retry after v when its
// adaptation fails with a recoverable failure.
func Fallbacks(v models.ContractVariant) []models.ContractVariant {
	order := []models.ContractVariant{
		models.VariantAsyncMain,
		models.VariantOptimal,
		models.VariantPerTicker,
		models.VariantBatch,
		models.VariantSyncMain,
		models.VariantGeneric,
	}
	for i, cand := range order {
		if cand == v {
			return order[i+1:]
		}
	}
	return nil
}
