package query

import (
	"errors"
	"fmt"
)

// Kind is the operation kind.
type Kind string

const (
	FindUnique Kind = "findUnique"
	FindFirst  Kind = "findFirst"
	FindMany   Kind = "findMany"
	Count      Kind = "count"
	Create     Kind = "create"
	CreateMany Kind = "createMany"
	Update     Kind = "update"
	UpdateMany Kind = "updateMany"
	Upsert     Kind = "upsert"
	Delete     Kind = "delete"
	DeleteMany Kind = "deleteMany"
)

// IsRead reports whether k only reads rows.
func (k Kind) IsRead() bool {
	switch k {
	case FindUnique, FindFirst, FindMany, Count:
		return true
	}
	return false
}

// IsCreate reports whether k inserts new rows and nothing else.
func (k Kind) IsCreate() bool {
	return k == Create || k == CreateMany
}

// IsFiltered reports whether k selects existing rows through a where clause.
func (k Kind) IsFiltered() bool {
	switch k {
	case FindUnique, FindFirst, FindMany, Count, Update, UpdateMany, Upsert, Delete, DeleteMany:
		return true
	}
	return false
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k.IsRead() || k.IsCreate() || k.IsFiltered()
}

var (
	// ErrNotFound is returned by single-row update and delete when nothing matches.
	ErrNotFound = errors.New("query: record not found")
	// ErrUnsupported is returned for unknown kinds or malformed arguments.
	ErrUnsupported = errors.New("query: unsupported operation")
)

// Record is one row keyed by field name.
type Record map[string]any

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Operation is one logical data access.
type Operation struct {
	Entity string
	Kind   Kind

	// Where is a conjunction. An empty Where matches every row.
	Where []Condition
	// Data is the create payload, the update assignments, or the update
	// branch of an upsert.
	Data Record
	// Records is the payload of CreateMany.
	Records []Record
	// Create is the insert branch of an upsert.
	Create Record

	OrderBy string
	Desc    bool
	Limit   int
}

// Clone deep-copies the argument containers of op.
func (op Operation) Clone() Operation {
	out := op
	if op.Where != nil {
		out.Where = append([]Condition(nil), op.Where...)
	}
	out.Data = op.Data.Clone()
	out.Create = op.Create.Clone()
	if op.Records != nil {
		out.Records = make([]Record, len(op.Records))
		for i, r := range op.Records {
			out.Records[i] = r.Clone()
		}
	}
	return out
}

// Validate checks that op carries the arguments its kind needs.
func (op Operation) Validate() error {
	if op.Entity == "" {
		return fmt.Errorf("%w: entity is required", ErrUnsupported)
	}
	if !op.Kind.Valid() {
		return fmt.Errorf("%w: kind %q", ErrUnsupported, op.Kind)
	}
	switch op.Kind {
	case Create:
		if len(op.Data) == 0 {
			return fmt.Errorf("%w: create without data", ErrUnsupported)
		}
	case CreateMany:
		if len(op.Records) == 0 {
			return fmt.Errorf("%w: createMany without records", ErrUnsupported)
		}
	case Update, UpdateMany:
		if len(op.Data) == 0 {
			return fmt.Errorf("%w: %s without data", ErrUnsupported, op.Kind)
		}
	case Upsert:
		if len(op.Create) == 0 {
			return fmt.Errorf("%w: upsert without create branch", ErrUnsupported)
		}
	}
	return nil
}

// Result is the outcome of an operation. Reads fill Records; Count and the
// *Many writes fill Affected; single-row writes fill both.
type Result struct {
	Records  []Record
	Affected int64
}

// First returns the first record or nil.
func (r Result) First() Record {
	if len(r.Records) == 0 {
		return nil
	}
	return r.Records[0]
}
