package filter

import (
	"errors"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/file"
	"github.com/expr-lang/expr/vm"

	"github.com/s0up4200/wpbs/bunny"
)

// Env is the data a collection filter sees. Expressions use the lower-case
// names, e.g. `videoCount > 10 && userId == "42"`.
type Env struct {
	Name       string `expr:"name"`
	GUID       string `expr:"guid"`
	LibraryID  int64  `expr:"libraryId"`
	UserID     string `expr:"userId"`
	VideoCount int64  `expr:"videoCount"`
	TotalSize  int64  `expr:"totalSize"`
	Previews   int    `expr:"previews"`
	// Managed is true when the name carries the per-user prefix
	Managed bool `expr:"managed"`
}

// NewEnv builds the filter environment for a collection. prefix is the
// per-user collection name prefix used to derive userId.
func NewEnv(c bunny.Collection, prefix string) Env {
	env := Env{
		Name:       c.Name,
		GUID:       c.GUID,
		LibraryID:  c.VideoLibraryID,
		VideoCount: c.VideoCount,
		TotalSize:  c.TotalSize,
		Previews:   len(c.PreviewImageURLs),
	}
	if prefix != "" && strings.HasPrefix(c.Name, prefix) {
		env.Managed = true
		env.UserID = strings.TrimPrefix(c.Name, prefix)
	}
	return env
}

// Filter is a compiled collection filter
type Filter struct {
	program *vm.Program
	expr    string
	prefix  string
}

// Compile compiles a boolean expression over Env
func Compile(expression, prefix string) (*Filter, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, &CompilationError{Expression: expression, Reason: "empty expression", Column: -1}
	}

	program, err := expr.Compile(expression, expr.Env(Env{}), expr.AsBool())
	if err != nil {
		cerr := &CompilationError{Expression: expression, Reason: err.Error(), Column: -1, Err: err}
		var fileErr *file.Error
		if errors.As(err, &fileErr) {
			cerr.Reason = fileErr.Message
			cerr.Column = fileErr.Column
		}
		return nil, cerr
	}

	return &Filter{program: program, expr: expression, prefix: prefix}, nil
}

// Match evaluates the filter against one collection
func (f *Filter) Match(c bunny.Collection) (bool, error) {
	out, err := expr.Run(f.program, NewEnv(c, f.prefix))
	if err != nil {
		return false, &EvaluationError{Expression: f.expr, CollectionGUID: c.GUID, Collection: c.Name, Err: err}
	}
	matched, _ := out.(bool)
	return matched, nil
}

// Apply returns the collections the filter matches, in input order. The
// first evaluation error aborts.
func (f *Filter) Apply(collections []bunny.Collection) ([]bunny.Collection, error) {
	matched := make([]bunny.Collection, 0, len(collections))
	for _, c := range collections {
		ok, err := f.Match(c)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, c)
		}
	}
	return matched, nil
}

// String returns the original expression
func (f *Filter) String() string {
	return f.expr
}
