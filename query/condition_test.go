package query

import (
	"testing"
	"time"
)

func TestMatch(t *testing.T) {
	r := Record{"id": "e1", "tenant_id": "t1", "age": int64(30), "manager": nil}

	cases := []struct {
		name  string
		where []Condition
		want  bool
	}{
		{"empty matches", nil, true},
		{"eq", []Condition{Eq("id", "e1")}, true},
		{"conjunction fails closed", []Condition{Eq("id", "e1"), Eq("tenant_id", "t2")}, false},
		{"contradictory tenant", []Condition{Eq("tenant_id", "t2"), Eq("tenant_id", "t1")}, false},
		{"numeric cross type", []Condition{Eq("age", 30)}, true},
		{"nil eq", []Condition{Eq("manager", nil)}, true},
		{"missing field is nil", []Condition{Eq("missing", nil)}, true},
		{"ne", []Condition{Ne("tenant_id", "t2")}, true},
		{"in", []Condition{In("id", "e0", "e1")}, true},
		{"empty in", []Condition{In("id")}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Match(r, tc.where); got != tc.want {
				t.Fatalf("Match = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestOperationCloneIsDeep(t *testing.T) {
	op := Operation{
		Entity:  "Employee",
		Kind:    CreateMany,
		Records: []Record{{"name": "a"}},
		Where:   []Condition{Eq("id", "1")},
	}
	c := op.Clone()
	c.Records[0]["name"] = "b"
	c.Where[0] = Eq("id", "2")

	if op.Records[0]["name"] != "a" || op.Where[0].Value != "1" {
		t.Fatal("clone shares state with original")
	}
}

func TestValidate(t *testing.T) {
	if err := (Operation{Entity: "X", Kind: Create}).Validate(); err == nil {
		t.Fatal("expected error for create without data")
	}
	if err := (Operation{Kind: FindMany}).Validate(); err == nil {
		t.Fatal("expected error for missing entity")
	}
	if err := (Operation{Entity: "X", Kind: FindMany}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCompare(t *testing.T) {
	early := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		a, b any
		want int
	}{
		{9, 10, -1},
		{int64(10), 9.5, 1},
		{uint8(3), 3, 0},
		{"10", "9", -1},
		{early, early.Add(time.Second), -1},
		{early.In(time.FixedZone("X", 3600)), early, 0},
		{true, false, 1},
		{nil, 0, -1},
		{"x", nil, 1},
		{nil, nil, 0},
	}
	for _, tc := range cases {
		if got := Compare(tc.a, tc.b); got != tc.want {
			t.Fatalf("Compare(%v, %v) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
