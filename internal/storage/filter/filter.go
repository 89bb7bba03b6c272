// Package filter translates AIP-160 filter expressions into SQL conditions
// for transaction-history queries.
package filter

import (
	"fmt"
	"strings"
	"time"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// HistoryDeclarations returns the field declarations accepted by history
// filters.
func HistoryDeclarations() (*filtering.Declarations, error) {
	return filtering.NewDeclarations(
		filtering.DeclareStandardFunctions(),
		filtering.DeclareIdent("kind", filtering.TypeString),
		filtering.DeclareIdent("hero_id", filtering.TypeString),
		filtering.DeclareIdent("request_id", filtering.TypeString),
		filtering.DeclareIdent("seq", filtering.TypeInt),
		filtering.DeclareIdent("canonical_at", filtering.TypeTimestamp),
		filtering.DeclareIdent("committed_at", filtering.TypeTimestamp),
	)
}

// SQLCondition is a WHERE fragment with positional ? parameters. The sqlite
// engine binds it directly; the postgres engine renumbers the placeholders.
type SQLCondition struct {
	Clause string
	Params []any
}

// columnFor maps filter field names to transaction table columns.
var columnFor = map[string]string{
	"kind":         "kind",
	"hero_id":      "hero_id",
	"request_id":   "request_id",
	"seq":          "seq",
	"canonical_at": "canonical_at",
	"committed_at": "committed_at",
}

// ParseHistoryFilter parses an AIP-160 expression into a SQL condition. An
// empty expression yields an empty condition.
func ParseHistoryFilter(filterStr string) (SQLCondition, error) {
	if strings.TrimSpace(filterStr) == "" {
		return SQLCondition{}, nil
	}

	decls, err := HistoryDeclarations()
	if err != nil {
		return SQLCondition{}, fmt.Errorf("create declarations: %w", err)
	}
	parsed, err := filtering.ParseFilter(stringFilterRequest{filter: filterStr}, decls)
	if err != nil {
		return SQLCondition{}, fmt.Errorf("parse filter: %w", err)
	}
	return translateExpr(parsed.CheckedExpr.Expr)
}

// stringFilterRequest adapts a raw filter string to filtering.Request; the
// pinned aip v0.71.x predates filtering.ParseFilterString.
type stringFilterRequest struct{ filter string }

func (r stringFilterRequest) GetFilter() string { return r.filter }

func translateExpr(e *expr.Expr) (SQLCondition, error) {
	if e == nil {
		return SQLCondition{}, nil
	}
	call, ok := e.ExprKind.(*expr.Expr_CallExpr)
	if !ok {
		return SQLCondition{}, fmt.Errorf("unsupported expression type: %T", e.ExprKind)
	}
	return translateCall(call.CallExpr)
}

func translateCall(call *expr.Expr_Call) (SQLCondition, error) {
	switch call.Function {
	case "_&&_", "AND":
		return translateLogical(call.Args, "AND")
	case "_||_", "OR":
		return translateLogical(call.Args, "OR")
	case "_==_", "=":
		return translateComparison(call.Args, "=")
	case "_!=_", "!=":
		return translateComparison(call.Args, "!=")
	case "_<_", "<":
		return translateComparison(call.Args, "<")
	case "_<=_", "<=":
		return translateComparison(call.Args, "<=")
	case "_>_", ">":
		return translateComparison(call.Args, ">")
	case "_>=_", ">=":
		return translateComparison(call.Args, ">=")
	default:
		return SQLCondition{}, fmt.Errorf("unsupported function: %s", call.Function)
	}
}

func translateLogical(args []*expr.Expr, op string) (SQLCondition, error) {
	if len(args) != 2 {
		return SQLCondition{}, fmt.Errorf("%s requires 2 arguments", op)
	}
	left, err := translateExpr(args[0])
	if err != nil {
		return SQLCondition{}, err
	}
	right, err := translateExpr(args[1])
	if err != nil {
		return SQLCondition{}, err
	}
	return SQLCondition{
		Clause: fmt.Sprintf("(%s %s %s)", left.Clause, op, right.Clause),
		Params: append(left.Params, right.Params...),
	}, nil
}

func translateComparison(args []*expr.Expr, op string) (SQLCondition, error) {
	if len(args) != 2 {
		return SQLCondition{}, fmt.Errorf("comparison requires 2 arguments")
	}
	field, err := extractFieldName(args[0])
	if err != nil {
		return SQLCondition{}, err
	}
	column, ok := columnFor[field]
	if !ok {
		return SQLCondition{}, fmt.Errorf("unknown field: %s", field)
	}
	value, err := extractValue(args[1])
	if err != nil {
		return SQLCondition{}, err
	}
	return SQLCondition{
		Clause: fmt.Sprintf("%s %s ?", column, op),
		Params: []any{value},
	}, nil
}

func extractFieldName(e *expr.Expr) (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil expression")
	}
	ident, ok := e.ExprKind.(*expr.Expr_IdentExpr)
	if !ok {
		return "", fmt.Errorf("expected identifier, got %T", e.ExprKind)
	}
	return ident.IdentExpr.Name, nil
}

func extractValue(e *expr.Expr) (any, error) {
	if e == nil {
		return nil, fmt.Errorf("nil expression")
	}
	switch kind := e.ExprKind.(type) {
	case *expr.Expr_ConstExpr:
		return extractConstValue(kind.ConstExpr)
	case *expr.Expr_CallExpr:
		if kind.CallExpr.Function == "timestamp" && len(kind.CallExpr.Args) == 1 {
			return extractTimestampMillis(kind.CallExpr.Args[0])
		}
		return nil, fmt.Errorf("unsupported function in value position: %s", kind.CallExpr.Function)
	default:
		return nil, fmt.Errorf("expected constant or timestamp, got %T", kind)
	}
}

func extractConstValue(c *expr.Constant) (any, error) {
	if c == nil {
		return nil, fmt.Errorf("nil constant")
	}
	switch kind := c.ConstantKind.(type) {
	case *expr.Constant_StringValue:
		return kind.StringValue, nil
	case *expr.Constant_Int64Value:
		return kind.Int64Value, nil
	case *expr.Constant_Uint64Value:
		return kind.Uint64Value, nil
	case *expr.Constant_DoubleValue:
		return kind.DoubleValue, nil
	case *expr.Constant_BoolValue:
		return kind.BoolValue, nil
	default:
		return nil, fmt.Errorf("unsupported constant type: %T", kind)
	}
}

// extractTimestampMillis converts a timestamp("...") argument to the
// millisecond UTC integer form the transaction tables store.
func extractTimestampMillis(e *expr.Expr) (int64, error) {
	if e == nil {
		return 0, fmt.Errorf("nil timestamp argument")
	}
	konst, ok := e.ExprKind.(*expr.Expr_ConstExpr)
	if !ok {
		return 0, fmt.Errorf("timestamp argument must be a constant string")
	}
	strVal, ok := konst.ConstExpr.ConstantKind.(*expr.Constant_StringValue)
	if !ok {
		return 0, fmt.Errorf("timestamp argument must be a string")
	}
	t, err := time.Parse(time.RFC3339, strVal.StringValue)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, strVal.StringValue)
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp format: %s", strVal.StringValue)
		}
	}
	return t.UTC().UnixMilli(), nil
}
