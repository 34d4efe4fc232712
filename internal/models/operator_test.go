package models

import (
	"testing"
)

func TestOperatorCodeRoundTrip(t *testing.T) {
	for _, op := range Operators {
		if got := OperatorFromCode(op.Code()); got != op {
			t.Errorf("OperatorFromCode(%q.Code()) = %q, want %q", op, got, op)
		}
	}
}

func TestMapOperator(t *testing.T) {
	tests := []struct {
		in   string
		want Operator
	}{
		{"==", OpEqual},
		{"!=", OpNotEqual},
		{"<", OpLessThan},
		{"<=", OpLessThanOrEqual},
		{">", OpGreaterThan},
		{">=", OpGreaterThanOrEqual},
		{"array-contains", OpArrayContains},
		{"in", OpIn},
		{"not-in", OpNotIn},
		{"array-contains-any", OpArrayContainsAny},
		{"GREATER_THAN", OpGreaterThan},
		{"ARRAY_CONTAINS", OpArrayContains},
		{"OPERATOR_UNSPECIFIED", OpEqual},
		{"", OpEqual},
		{"like", OpEqual},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := MapOperator(tt.in); got != tt.want {
				t.Errorf("MapOperator(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMapOperator_Idempotent(t *testing.T) {
	for _, op := range Operators {
		if got := MapOperator(string(op)); got != op {
			t.Errorf("MapOperator(%q) = %q, want identity", op, got)
		}
		if got := MapOperator(op.Symbol()); got != op {
			t.Errorf("MapOperator(%q) = %q, want %q", op.Symbol(), got, op)
		}
	}
}

func TestOperatorCodes(t *testing.T) {
	want := map[Operator]string{
		OpEqual:              "EQ",
		OpNotEqual:           "NEQ",
		OpLessThan:           "LT",
		OpLessThanOrEqual:    "LTE",
		OpGreaterThan:        "GT",
		OpGreaterThanOrEqual: "GTE",
		OpArrayContains:      "AC",
		OpIn:                 "IN",
		OpNotIn:              "NIN",
		OpArrayContainsAny:   "ACA",
	}
	for op, code := range want {
		if op.Code() != code {
			t.Errorf("%q.Code() = %q, want %q", op, op.Code(), code)
		}
	}

	if Operator("BOGUS").Code() != "EQ" {
		t.Errorf("Expected unknown operator to encode as EQ")
	}
	if OperatorFromCode("XYZ") != OpEqual {
		t.Errorf("Expected unknown code to decode as EQUAL")
	}
	if Operator("BOGUS").Valid() {
		t.Error("Expected BOGUS to be invalid")
	}
}
