package stockcount

import (
	"math"
	"time"

	"github.com/google/cel-go/cel"

	"larder/internal/core/apperror"
	"larder/internal/domain/ledger"
)

// celEnv declares the lot fields a count filter expression may reference.
var celEnv = func() *cel.Env {
	env, err := cel.NewEnv(
		cel.Variable("itemId", cel.StringType),
		cel.Variable("lotCode", cel.StringType),
		cel.Variable("untracked", cel.BoolType),
		cel.Variable("locationCode", cel.StringType),
		cel.Variable("remaining", cel.DoubleType),
		cel.Variable("daysToExpiry", cel.IntType),
	)
	if err != nil {
		panic(err)
	}
	return env
}()

// LotFilterProgram is a compiled count filter. Expressions are compiled at
// the boundary (CreateCount) so a bad filter fails the request, not the
// sheet preparation later.
type LotFilterProgram struct {
	program cel.Program
}

// CompileLotFilter parses and type-checks a filter expression. The expression
// must evaluate to bool. An empty expression compiles to a match-all filter.
func CompileLotFilter(expr string) (*LotFilterProgram, error) {
	if expr == "" {
		return &LotFilterProgram{}, nil
	}

	ast, issues := celEnv.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, apperror.NewValidation("invalid filter expression").
			WithDetail("filter", expr).
			WithDetail("error", issues.Err().Error())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, apperror.NewValidation("filter expression must evaluate to a boolean").
			WithDetail("filter", expr).
			WithDetail("outputType", ast.OutputType().String())
	}

	program, err := celEnv.Program(ast)
	if err != nil {
		return nil, apperror.NewValidation("invalid filter expression").
			WithDetail("filter", expr).
			WithDetail("error", err.Error())
	}

	return &LotFilterProgram{program: program}, nil
}

// Match evaluates the filter against a lot. Lots without an expiry date get
// a practically infinite daysToExpiry so `daysToExpiry < 30` style filters
// naturally exclude them.
func (f *LotFilterProgram) Match(lot ledger.StockLot, now time.Time) (bool, error) {
	if f.program == nil {
		return true, nil
	}

	daysToExpiry := int64(math.MaxInt32)
	if lot.ExpiryDate != nil {
		daysToExpiry = int64(lot.ExpiryDate.Sub(now).Hours() / 24)
	}

	out, _, err := f.program.Eval(map[string]any{
		"itemId":       lot.ItemID.String(),
		"lotCode":      lot.LotCode.String(),
		"untracked":    lot.LotCode.Untracked(),
		"locationCode": lot.LocationCode,
		"remaining":    lot.RemainingQty.Float64(),
		"daysToExpiry": daysToExpiry,
	})
	if err != nil {
		return false, apperror.NewValidation("filter evaluation failed").
			WithDetail("error", err.Error())
	}

	matched, ok := out.Value().(bool)
	if !ok {
		return false, apperror.NewValidation("filter expression must evaluate to a boolean")
	}
	return matched, nil
}
