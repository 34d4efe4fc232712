package models

// Operator is a field filter operator in its canonical enum form
type Operator string

// Supported filter operators
const (
	OpEqual              Operator = "EQUAL"
	OpNotEqual           Operator = "NOT_EQUAL"
	OpLessThan           Operator = "LESS_THAN"
	OpLessThanOrEqual    Operator = "LESS_THAN_OR_EQUAL"
	OpGreaterThan        Operator = "GREATER_THAN"
	OpGreaterThanOrEqual Operator = "GREATER_THAN_OR_EQUAL"
	OpArrayContains      Operator = "ARRAY_CONTAINS"
	OpArrayContainsAny   Operator = "ARRAY_CONTAINS_ANY"
	OpIn                 Operator = "IN"
	OpNotIn              Operator = "NOT_IN"
)

// Operators lists every operator in declaration order
var Operators = []Operator{
	OpEqual,
	OpNotEqual,
	OpLessThan,
	OpLessThanOrEqual,
	OpGreaterThan,
	OpGreaterThanOrEqual,
	OpArrayContains,
	OpArrayContainsAny,
	OpIn,
	OpNotIn,
}

type operatorForms struct {
	symbol string
	code   string
}

var operatorTable = map[Operator]operatorForms{
	OpEqual:              {symbol: "==", code: "EQ"},
	OpNotEqual:           {symbol: "!=", code: "NEQ"},
	OpLessThan:           {symbol: "<", code: "LT"},
	OpLessThanOrEqual:    {symbol: "<=", code: "LTE"},
	OpGreaterThan:        {symbol: ">", code: "GT"},
	OpGreaterThanOrEqual: {symbol: ">=", code: "GTE"},
	OpArrayContains:      {symbol: "array-contains", code: "AC"},
	OpArrayContainsAny:   {symbol: "array-contains-any", code: "ACA"},
	OpIn:                 {symbol: "in", code: "IN"},
	OpNotIn:              {symbol: "not-in", code: "NIN"},
}

var (
	operatorsBySymbol = make(map[string]Operator, len(operatorTable))
	operatorsByCode   = make(map[string]Operator, len(operatorTable))
)

func init() {
	for op, forms := range operatorTable {
		operatorsBySymbol[forms.symbol] = op
		operatorsByCode[forms.code] = op
	}
}

// MapOperator converts a wire operator (symbolic or enum form) to an Operator.
// Unrecognized input maps to OpEqual.
func MapOperator(s string) Operator {
	if op, ok := operatorsBySymbol[s]; ok {
		return op
	}
	if _, ok := operatorTable[Operator(s)]; ok {
		return Operator(s)
	}
	return OpEqual
}

// OperatorFromCode reverses a console query-string operator code.
// Unknown codes map to OpEqual.
func OperatorFromCode(code string) Operator {
	if op, ok := operatorsByCode[code]; ok {
		return op
	}
	return OpEqual
}

// Code returns the console query-string abbreviation of the operator
func (o Operator) Code() string {
	if forms, ok := operatorTable[o]; ok {
		return forms.code
	}
	return operatorTable[OpEqual].code
}

// Symbol returns the symbolic SDK form of the operator (e.g. ">=")
func (o Operator) Symbol() string {
	if forms, ok := operatorTable[o]; ok {
		return forms.symbol
	}
	return operatorTable[OpEqual].symbol
}

// Valid reports whether o is one of the known operators
func (o Operator) Valid() bool {
	_, ok := operatorTable[o]
	return ok
}
