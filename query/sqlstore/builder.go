package sqlstore

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/MrEthical07/goGuard/query"
)

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Statement is a rendered SQL statement with positional arguments.
type Statement struct {
	SQL  string
	Args []any
}

// TableName maps an entity name to its table: FormTemplate becomes form_templates.
func TableName(entity string) string {
	var b strings.Builder
	for i, r := range entity {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	name := b.String()
	switch {
	case strings.HasSuffix(name, "s"):
		return name
	case strings.HasSuffix(name, "y"):
		return strings.TrimSuffix(name, "y") + "ies"
	default:
		return name + "s"
	}
}

type builder struct {
	table string
	args  []any
}

func newBuilder(entity string, tables map[string]string) (*builder, error) {
	table, ok := tables[entity]
	if !ok {
		table = TableName(entity)
	}
	if !identifier.MatchString(table) {
		return nil, fmt.Errorf("%w: table %q", query.ErrUnsupported, table)
	}
	return &builder{table: table}, nil
}

func (b *builder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *builder) where(conds []query.Condition) (string, error) {
	if len(conds) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		if !identifier.MatchString(c.Field) {
			return "", fmt.Errorf("%w: column %q", query.ErrUnsupported, c.Field)
		}
		switch c.Op {
		case query.OpEq:
			if c.Value == nil {
				parts = append(parts, c.Field+" is null")
			} else {
				parts = append(parts, c.Field+" = "+b.arg(c.Value))
			}
		case query.OpNe:
			if c.Value == nil {
				parts = append(parts, c.Field+" is not null")
			} else {
				parts = append(parts, c.Field+" <> "+b.arg(c.Value))
			}
		case query.OpIn:
			values, _ := c.Value.([]any)
			if len(values) == 0 {
				parts = append(parts, "false")
				continue
			}
			ph := make([]string, len(values))
			for i, v := range values {
				ph[i] = b.arg(v)
			}
			parts = append(parts, c.Field+" in ("+strings.Join(ph, ", ")+")")
		default:
			return "", fmt.Errorf("%w: operator %q", query.ErrUnsupported, c.Op)
		}
	}
	return " where " + strings.Join(parts, " and "), nil
}

func sortedColumns(records ...query.Record) ([]string, error) {
	seen := map[string]struct{}{}
	for _, r := range records {
		for k := range r {
			seen[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		if !identifier.MatchString(k) {
			return nil, fmt.Errorf("%w: column %q", query.ErrUnsupported, k)
		}
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols, nil
}

// Build renders op for the PostgreSQL dialect. Upsert is not a single
// statement; [Store] runs it as select-then-write inside a serializable
// transaction.
func Build(op query.Operation, tables map[string]string) (Statement, error) {
	if err := op.Validate(); err != nil {
		return Statement{}, err
	}
	b, err := newBuilder(op.Entity, tables)
	if err != nil {
		return Statement{}, err
	}

	switch op.Kind {
	case query.FindUnique, query.FindFirst, query.FindMany:
		return b.selectStmt(op)
	case query.Count:
		where, err := b.where(op.Where)
		if err != nil {
			return Statement{}, err
		}
		return Statement{SQL: "select count(*) from " + b.table + where, Args: b.args}, nil
	case query.Create:
		return b.insertStmt([]query.Record{op.Data}, true)
	case query.CreateMany:
		return b.insertStmt(op.Records, false)
	case query.Update, query.UpdateMany:
		return b.updateStmt(op.Where, op.Data, op.Kind == query.Update)
	case query.Delete, query.DeleteMany:
		where, err := b.where(op.Where)
		if err != nil {
			return Statement{}, err
		}
		if op.Kind == query.Delete {
			where = b.firstRow(where)
		}
		sql := "delete from " + b.table + where
		if op.Kind == query.Delete {
			sql += " returning *"
		}
		return Statement{SQL: sql, Args: b.args}, nil
	}
	return Statement{}, fmt.Errorf("%w: kind %q", query.ErrUnsupported, op.Kind)
}

func (b *builder) selectStmt(op query.Operation) (Statement, error) {
	where, err := b.where(op.Where)
	if err != nil {
		return Statement{}, err
	}
	sql := "select * from " + b.table + where
	if op.OrderBy != "" {
		if !identifier.MatchString(op.OrderBy) {
			return Statement{}, fmt.Errorf("%w: order column %q", query.ErrUnsupported, op.OrderBy)
		}
		sql += " order by " + op.OrderBy
		if op.Desc {
			sql += " desc"
		}
	}
	limit := op.Limit
	if op.Kind != query.FindMany {
		limit = 1
	}
	if limit > 0 {
		sql += " limit " + strconv.Itoa(limit)
	}
	return Statement{SQL: sql, Args: b.args}, nil
}

func (b *builder) insertStmt(records []query.Record, returning bool) (Statement, error) {
	cols, err := sortedColumns(records...)
	if err != nil {
		return Statement{}, err
	}
	rows := make([]string, len(records))
	for i, r := range records {
		ph := make([]string, len(cols))
		for j, c := range cols {
			ph[j] = b.arg(r[c])
		}
		rows[i] = "(" + strings.Join(ph, ", ") + ")"
	}
	sql := "insert into " + b.table + " (" + strings.Join(cols, ", ") + ") values " + strings.Join(rows, ", ")
	if returning {
		sql += " returning *"
	}
	return Statement{SQL: sql, Args: b.args}, nil
}

// firstRow narrows a where clause to the first physical row it matches, so
// Update and Delete touch one row like they do in memstore.
func (b *builder) firstRow(where string) string {
	return " where ctid = (select ctid from " + b.table + where + " limit 1)"
}

func (b *builder) updateStmt(where []query.Condition, data query.Record, returning bool) (Statement, error) {
	cols, err := sortedColumns(data)
	if err != nil {
		return Statement{}, err
	}
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = " + b.arg(data[c])
	}
	clause, err := b.where(where)
	if err != nil {
		return Statement{}, err
	}
	if returning {
		clause = b.firstRow(clause)
	}
	sql := "update " + b.table + " set " + strings.Join(sets, ", ") + clause
	if returning {
		sql += " returning *"
	}
	return Statement{SQL: sql, Args: b.args}, nil
}
