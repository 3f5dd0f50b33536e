// Package filter provides AIP-160 filter expression parsing and SQL translation.
package filter

import (
	"fmt"
	"strings"
	"time"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// FieldType is the declared type of a filterable field.
type FieldType int

const (
	// String fields compare against quoted literals.
	String FieldType = iota
	// Int fields compare against integer literals.
	Int
	// Timestamp fields compare against timestamp("...") calls and are
	// translated to UTC unix milliseconds.
	Timestamp
)

// Field maps a filter identifier to a SQL column.
type Field struct {
	Name   string
	Column string
	Type   FieldType
}

// Schema describes the identifiers a filter may reference.
type Schema struct {
	fields map[string]Field
	decls  *filtering.Declarations
}

// SQLCondition represents a SQL WHERE clause fragment with parameters.
type SQLCondition struct {
	// Clause is the SQL WHERE clause (e.g., "category = ?").
	Clause string
	// Params are the positional parameters for the clause.
	Params []any
}

// Empty reports whether the condition has no clause.
func (c SQLCondition) Empty() bool {
	return strings.TrimSpace(c.Clause) == ""
}

// NewSchema builds declarations for the given fields.
func NewSchema(fields ...Field) (*Schema, error) {
	opts := []filtering.DeclarationOption{filtering.DeclareStandardFunctions()}
	mapping := make(map[string]Field, len(fields))
	for _, field := range fields {
		name := strings.TrimSpace(field.Name)
		if name == "" || strings.TrimSpace(field.Column) == "" {
			return nil, fmt.Errorf("field name and column are required")
		}
		if _, exists := mapping[name]; exists {
			return nil, fmt.Errorf("duplicate field %q", name)
		}
		mapping[name] = field
		opts = append(opts, filtering.DeclareIdent(name, field.Type.declared()))
	}
	decls, err := filtering.NewDeclarations(opts...)
	if err != nil {
		return nil, fmt.Errorf("create declarations: %w", err)
	}
	return &Schema{fields: mapping, decls: decls}, nil
}

// MustSchema is NewSchema for package-level schemas.
func MustSchema(fields ...Field) *Schema {
	schema, err := NewSchema(fields...)
	if err != nil {
		panic(err)
	}
	return schema
}

func (t FieldType) declared() *expr.Type {
	switch t {
	case Int:
		return filtering.TypeInt
	case Timestamp:
		return filtering.TypeTimestamp
	default:
		return filtering.TypeString
	}
}

// Parse parses an AIP-160 filter expression and returns a SQL condition.
// Returns an empty condition for an empty filter string.
func (s *Schema) Parse(filterStr string) (SQLCondition, error) {
	if strings.TrimSpace(filterStr) == "" {
		return SQLCondition{}, nil
	}

	filter, err := filtering.ParseFilterString(filterStr, s.decls)
	if err != nil {
		return SQLCondition{}, fmt.Errorf("parse filter: %w", err)
	}

	return s.translateExpr(filter.CheckedExpr.GetExpr())
}

// translateExpr translates a CEL expression to a SQL condition.
func (s *Schema) translateExpr(e *expr.Expr) (SQLCondition, error) {
	if e == nil {
		return SQLCondition{}, nil
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_CallExpr:
		return s.translateCall(kind.CallExpr)
	default:
		return SQLCondition{}, fmt.Errorf("unsupported expression type: %T", kind)
	}
}

// translateCall translates a CEL function call to a SQL condition.
func (s *Schema) translateCall(call *expr.Expr_Call) (SQLCondition, error) {
	switch call.Function {
	case filtering.FunctionAnd:
		return s.translateJunction(call.Args, "AND")
	case filtering.FunctionOr:
		return s.translateJunction(call.Args, "OR")
	case filtering.FunctionNot:
		return s.translateNot(call.Args)
	case filtering.FunctionEquals:
		return s.translateComparison(call.Args, "=")
	case filtering.FunctionNotEquals:
		return s.translateComparison(call.Args, "!=")
	case filtering.FunctionLessThan:
		return s.translateComparison(call.Args, "<")
	case filtering.FunctionLessEquals:
		return s.translateComparison(call.Args, "<=")
	case filtering.FunctionGreaterThan:
		return s.translateComparison(call.Args, ">")
	case filtering.FunctionGreaterEquals:
		return s.translateComparison(call.Args, ">=")
	case filtering.FunctionHas:
		return s.translateHas(call.Args)
	default:
		return SQLCondition{}, fmt.Errorf("unsupported function: %s", call.Function)
	}
}

func (s *Schema) translateJunction(args []*expr.Expr, op string) (SQLCondition, error) {
	if len(args) < 2 {
		return SQLCondition{}, fmt.Errorf("%s requires at least 2 arguments", op)
	}

	clauses := make([]string, 0, len(args))
	var params []any
	for _, arg := range args {
		cond, err := s.translateExpr(arg)
		if err != nil {
			return SQLCondition{}, err
		}
		clauses = append(clauses, cond.Clause)
		params = append(params, cond.Params...)
	}

	return SQLCondition{
		Clause: "(" + strings.Join(clauses, " "+op+" ") + ")",
		Params: params,
	}, nil
}

func (s *Schema) translateNot(args []*expr.Expr) (SQLCondition, error) {
	if len(args) != 1 {
		return SQLCondition{}, fmt.Errorf("NOT requires 1 argument")
	}
	inner, err := s.translateExpr(args[0])
	if err != nil {
		return SQLCondition{}, err
	}
	return SQLCondition{
		Clause: fmt.Sprintf("(NOT %s)", inner.Clause),
		Params: inner.Params,
	}, nil
}

func (s *Schema) translateComparison(args []*expr.Expr, op string) (SQLCondition, error) {
	if len(args) != 2 {
		return SQLCondition{}, fmt.Errorf("comparison requires 2 arguments")
	}

	field, err := s.lookupField(args[0])
	if err != nil {
		return SQLCondition{}, err
	}

	value, err := extractValue(args[1], field.Type)
	if err != nil {
		return SQLCondition{}, err
	}

	return SQLCondition{
		Clause: fmt.Sprintf("%s %s ?", field.Column, op),
		Params: []any{value},
	}, nil
}

// translateHas maps the ":" operator to a case-insensitive substring match.
func (s *Schema) translateHas(args []*expr.Expr) (SQLCondition, error) {
	if len(args) != 2 {
		return SQLCondition{}, fmt.Errorf("has requires 2 arguments")
	}
	field, err := s.lookupField(args[0])
	if err != nil {
		return SQLCondition{}, err
	}
	if field.Type != String {
		return SQLCondition{}, fmt.Errorf("field %s does not support ':'", field.Name)
	}
	value, err := extractValue(args[1], String)
	if err != nil {
		return SQLCondition{}, err
	}
	needle, _ := value.(string)
	return SQLCondition{
		Clause: fmt.Sprintf("LOWER(%s) LIKE ? ESCAPE '\\'", field.Column),
		Params: []any{"%" + escapeLike(strings.ToLower(needle)) + "%"},
	}, nil
}

func (s *Schema) lookupField(e *expr.Expr) (Field, error) {
	name, err := extractFieldName(e)
	if err != nil {
		return Field{}, err
	}
	field, ok := s.fields[name]
	if !ok {
		return Field{}, fmt.Errorf("unknown field: %s", name)
	}
	return field, nil
}

func extractFieldName(e *expr.Expr) (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil expression")
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_IdentExpr:
		return kind.IdentExpr.Name, nil
	default:
		return "", fmt.Errorf("expected identifier, got %T", kind)
	}
}

func extractValue(e *expr.Expr, fieldType FieldType) (any, error) {
	if e == nil {
		return nil, fmt.Errorf("nil expression")
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_ConstExpr:
		return extractConstValue(kind.ConstExpr)
	case *expr.Expr_CallExpr:
		if kind.CallExpr.Function == filtering.FunctionTimestamp && len(kind.CallExpr.Args) == 1 {
			if fieldType != Timestamp {
				return nil, fmt.Errorf("timestamp value used on non-timestamp field")
			}
			return extractTimestampValue(kind.CallExpr.Args[0])
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

func extractTimestampValue(e *expr.Expr) (int64, error) {
	if e == nil {
		return 0, fmt.Errorf("nil timestamp argument")
	}

	kind, ok := e.ExprKind.(*expr.Expr_ConstExpr)
	if !ok {
		return 0, fmt.Errorf("timestamp argument must be a constant string")
	}
	strVal, ok := kind.ConstExpr.ConstantKind.(*expr.Constant_StringValue)
	if !ok {
		return 0, fmt.Errorf("timestamp argument must be a string")
	}
	t, err := time.Parse(time.RFC3339Nano, strVal.StringValue)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp format: %s", strVal.StringValue)
	}
	return t.UTC().UnixMilli(), nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
