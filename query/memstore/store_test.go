package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/query"
)

func seed(t *testing.T, s *Store, recs ...query.Record) {
	t.Helper()
	for _, r := range recs {
		if _, err := s.Execute(context.Background(), query.Operation{Entity: "Employee", Kind: query.Create, Data: r}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestCreateAssignsULID(t *testing.T) {
	s := New()
	res, err := s.Execute(context.Background(), query.Operation{
		Entity: "Employee", Kind: query.Create, Data: query.Record{"name": "Ada"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	id, _ := res.First()[IDField].(string)
	if len(id) != 26 {
		t.Fatalf("expected ulid id, got %q", id)
	}
}

func TestFindManyOrderAndLimit(t *testing.T) {
	s := New()
	seed(t, s,
		query.Record{"id": "1", "name": "Cy", "dept": "ops"},
		query.Record{"id": "2", "name": "Ada", "dept": "ops"},
		query.Record{"id": "3", "name": "Bo", "dept": "hr"},
	)

	res, err := s.Execute(context.Background(), query.Operation{
		Entity: "Employee", Kind: query.FindMany,
		Where:   []query.Condition{query.Eq("dept", "ops")},
		OrderBy: "name",
	})
	if err != nil {
		t.Fatalf("FindMany: %v", err)
	}
	if len(res.Records) != 2 || res.Records[0]["name"] != "Ada" {
		t.Fatalf("unexpected records %v", res.Records)
	}

	res, _ = s.Execute(context.Background(), query.Operation{
		Entity: "Employee", Kind: query.FindMany, OrderBy: "name", Desc: true, Limit: 1,
	})
	if len(res.Records) != 1 || res.Records[0]["name"] != "Cy" {
		t.Fatalf("unexpected limited records %v", res.Records)
	}

	res, _ = s.Execute(context.Background(), query.Operation{
		Entity: "Employee", Kind: query.Count, Where: []query.Condition{query.In("id", "1", "3")},
	})
	if res.Affected != 2 {
		t.Fatalf("expected count 2, got %d", res.Affected)
	}
}

func TestFindManyOrdersByValue(t *testing.T) {
	s := New()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	seed(t, s,
		query.Record{"id": "a", "seniority": 9, "hired": base.Add(48 * time.Hour)},
		query.Record{"id": "b", "seniority": 10, "hired": base},
		query.Record{"id": "c", "seniority": 2.5, "hired": base.Add(time.Hour)},
	)

	ids := func(res query.Result) string {
		var out string
		for _, r := range res.Records {
			out += r["id"].(string)
		}
		return out
	}

	res, err := s.Execute(context.Background(), query.Operation{Entity: "Employee", Kind: query.FindMany, OrderBy: "seniority", Desc: true})
	if err != nil {
		t.Fatalf("FindMany: %v", err)
	}
	if got := ids(res); got != "bac" {
		t.Fatalf("seniority desc = %s, want bac", got)
	}

	res, err = s.Execute(context.Background(), query.Operation{Entity: "Employee", Kind: query.FindMany, OrderBy: "hired"})
	if err != nil {
		t.Fatalf("FindMany: %v", err)
	}
	if got := ids(res); got != "bca" {
		t.Fatalf("hired asc = %s, want bca", got)
	}
}

func TestSingleWritesReportNotFound(t *testing.T) {
	s := New()
	seed(t, s, query.Record{"id": "1", "name": "Ada"})

	_, err := s.Execute(context.Background(), query.Operation{
		Entity: "Employee", Kind: query.Update,
		Where: []query.Condition{query.Eq("id", "2")},
		Data:  query.Record{"name": "Bo"},
	})
	if !errors.Is(err, query.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
	_, err = s.Execute(context.Background(), query.Operation{
		Entity: "Employee", Kind: query.Delete, Where: []query.Condition{query.Eq("id", "2")},
	})
	if !errors.Is(err, query.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on delete, got %v", err)
	}

	res, err := s.Execute(context.Background(), query.Operation{
		Entity: "Employee", Kind: query.DeleteMany, Where: []query.Condition{query.Eq("id", "2")},
	})
	if err != nil || res.Affected != 0 {
		t.Fatalf("deleteMany on no match: %v %v", res, err)
	}
}

func TestUpsert(t *testing.T) {
	s := New()
	op := query.Operation{
		Entity: "OrganizationSettings", Kind: query.Upsert,
		Where:  []query.Condition{query.Eq("key", "theme")},
		Create: query.Record{"key": "theme", "value": "light"},
		Data:   query.Record{"value": "dark"},
	}
	if _, err := s.Execute(context.Background(), op); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	res, err := s.Execute(context.Background(), op)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if res.First()["value"] != "dark" || s.Len("OrganizationSettings") != 1 {
		t.Fatalf("expected update branch, got %v (rows=%d)", res.First(), s.Len("OrganizationSettings"))
	}
}

func TestInvalidOperation(t *testing.T) {
	s := New()
	if _, err := s.Execute(context.Background(), query.Operation{Entity: "Employee", Kind: "truncate"}); !errors.Is(err, query.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}
