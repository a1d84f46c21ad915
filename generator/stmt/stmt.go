// Package stmt models DDL statements as structured intents and renders them
// to SQL text. All identifier quoting and literal escaping lives here.
package stmt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Dialect selects quoting rules
type Dialect int

const (
	// Postgres covers RisingWave
	Postgres Dialect = iota
	// MySQL covers StarRocks
	MySQL
)

type Verb string

const (
	Create   Verb = "CREATE"
	Drop     Verb = "DROP"
	Truncate Verb = "TRUNCATE"
)

type ObjectKind string

const (
	Schema           ObjectKind = "SCHEMA"
	Database         ObjectKind = "DATABASE"
	Secret           ObjectKind = "SECRET"
	Source           ObjectKind = "SOURCE"
	Table            ObjectKind = "TABLE"
	Sink             ObjectKind = "SINK"
	MaterializedView ObjectKind = "MATERIALIZED VIEW"
)

var plainIdentifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

var reservedWords = map[string]struct{}{}

func init() {
	for _, word := range strings.Fields(`all analyse analyze and any array as asc asymmetric both case cast check
		collate column constraint create current_catalog current_date current_role current_time
		current_timestamp current_user default deferrable desc distinct do else end except false fetch
		for foreign from grant group having in initially intersect into lateral leading limit localtime
		localtimestamp not null offset on only or order placing primary references returning select
		session_user some symmetric table then to trailing true union unique user using variadic when
		where window with key`) {
		reservedWords[word] = struct{}{}
	}
}

// QuoteIdent renders one identifier part. Postgres identifiers stay bare when
// case folding cannot change them; MySQL identifiers are always back-quoted.
func (d Dialect) QuoteIdent(part string) string {
	switch d {
	case MySQL:
		return "`" + strings.ReplaceAll(part, "`", "``") + "`"
	default:
		if _, reserved := reservedWords[part]; plainIdentifier.MatchString(part) && !reserved {
			return part
		}
		return `"` + strings.ReplaceAll(part, `"`, `""`) + `"`
	}
}

// QuoteLiteral renders a single-quoted string literal
func QuoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// Name is an object name, optionally schema qualified
type Name []string

func Qualified(parts ...string) Name {
	return Name(parts)
}

func (n Name) Render(d Dialect) string {
	quoted := make([]string, len(n))
	for i, part := range n {
		quoted[i] = d.QuoteIdent(part)
	}
	return strings.Join(quoted, ".")
}

// String joins the raw parts, for logs
func (n Name) String() string {
	return strings.Join(n, ".")
}

// Value is the right-hand side of an option
type Value interface {
	render(d Dialect) string
}

type literal string

func (l literal) render(Dialect) string { return QuoteLiteral(string(l)) }

// Literal is a quoted string value
func Literal(value string) Value { return literal(value) }

// IntLiteral is a number carried as a quoted string value
func IntLiteral(value int) Value { return literal(strconv.Itoa(value)) }

type secretRef Name

func (s secretRef) render(d Dialect) string { return "secret " + Name(s).Render(d) }

// SecretRef points an option at a stored secret instead of a plain value
func SecretRef(name Name) Value { return secretRef(name) }

type Option struct {
	Key   string
	Value Value
}

func Opt(key string, value Value) Option {
	return Option{Key: key, Value: value}
}

// Clause is any fragment following the object name
type Clause interface {
	render(d Dialect) string
}

// inlineClause marks clauses that continue the current line
type inlineClause interface {
	inline()
}

type withClause []Option

func (w withClause) render(d Dialect) string {
	lines := make([]string, len(w))
	for i, opt := range w {
		lines[i] = fmt.Sprintf("    %s = %s", opt.Key, opt.Value.render(d))
	}
	return "WITH (\n" + strings.Join(lines, ",\n") + "\n)"
}

// With renders an ordered option list
func With(opts ...Option) Clause { return withClause(opts) }

type asLiteral string

func (a asLiteral) render(Dialect) string { return "AS " + QuoteLiteral(string(a)) }

// AsLiteral renders AS '<value>', used for secret payloads
func AsLiteral(value string) Clause { return asLiteral(value) }

type wildcardColumns struct{}

func (wildcardColumns) render(Dialect) string { return "(*)" }
func (wildcardColumns) inline()               {}

// WildcardColumns renders the (*) column list of a table fed by a shared source
func WildcardColumns() Clause { return wildcardColumns{} }

type fromSourceTable struct {
	source   Name
	upstream string
}

func (fromSourceTable) inline() {}

func (f fromSourceTable) render(d Dialect) string {
	return fmt.Sprintf("FROM %s TABLE %s", f.source.Render(d), QuoteLiteral(f.upstream))
}

// FromSourceTable binds a table to one upstream table of a shared source
func FromSourceTable(source Name, upstream string) Clause {
	return fromSourceTable{source: source, upstream: upstream}
}

type from Name

func (f from) render(d Dialect) string { return "FROM " + Name(f).Render(d) }

// From renders FROM <relation>
func From(relation Name) Clause { return from(relation) }

// Projection is one select-list item; Cast is empty when the column passes through
type Projection struct {
	Column string
	Cast   string
}

type asSelect struct {
	items    []Projection
	relation Name
}

func (a asSelect) render(d Dialect) string {
	items := make([]string, len(a.items))
	for i, item := range a.items {
		column := d.QuoteIdent(item.Column)
		if item.Cast == "" {
			items[i] = column
			continue
		}
		items[i] = fmt.Sprintf("%s::%s AS %s", column, item.Cast, column)
	}
	return fmt.Sprintf("AS SELECT\n    %s\nFROM %s", strings.Join(items, ",\n    "), a.relation.Render(d))
}

// AsSelect renders AS SELECT <items> FROM <relation>
func AsSelect(items []Projection, relation Name) Clause {
	return asSelect{items: items, relation: relation}
}

// ColumnDef is one column of a table definition
type ColumnDef struct {
	Name     string
	Type     string
	Nullable bool
	Comment  string
}

type columnDefs []ColumnDef

func (columnDefs) inline() {}

func (c columnDefs) render(d Dialect) string {
	lines := make([]string, len(c))
	for i, col := range c {
		line := fmt.Sprintf("    %s %s %s", d.QuoteIdent(col.Name), col.Type, nullability(col.Nullable))
		if col.Comment != "" {
			line += " COMMENT " + QuoteLiteral(col.Comment)
		}
		lines[i] = line
	}
	return "(\n" + strings.Join(lines, ",\n") + "\n)"
}

func nullability(nullable bool) string {
	if nullable {
		return "NULL"
	}
	return "NOT NULL"
}

// Columns renders a parenthesized column definition list
func Columns(defs ...ColumnDef) Clause { return columnDefs(defs) }

type engine string

func (e engine) render(Dialect) string { return "ENGINE=" + string(e) }

// Engine renders ENGINE=<name>
func Engine(name string) Clause { return engine(name) }

type primaryKey []string

func (p primaryKey) render(d Dialect) string {
	return "PRIMARY KEY(" + quoteList(d, p) + ")"
}

// PrimaryKey renders PRIMARY KEY(<columns>)
func PrimaryKey(columns ...string) Clause { return primaryKey(columns) }

type hashDistribution struct {
	columns []string
	buckets int
}

func (h hashDistribution) render(d Dialect) string {
	return fmt.Sprintf("DISTRIBUTED BY HASH(%s) BUCKETS %d", quoteList(d, h.columns), h.buckets)
}

// DistributedByHash renders DISTRIBUTED BY HASH(<columns>) BUCKETS <n>
func DistributedByHash(buckets int, columns ...string) Clause {
	return hashDistribution{columns: columns, buckets: buckets}
}

// Property is one StarRocks table property
type Property struct {
	Key   string
	Value string
}

type properties []Property

func (p properties) render(Dialect) string {
	lines := make([]string, len(p))
	for i, prop := range p {
		lines[i] = fmt.Sprintf("    %s = %s", strconv.Quote(prop.Key), strconv.Quote(prop.Value))
	}
	return "PROPERTIES (\n" + strings.Join(lines, ",\n") + "\n)"
}

// Properties renders a PROPERTIES block with double-quoted keys and values
func Properties(props ...Property) Clause { return properties(props) }

func quoteList(d Dialect, columns []string) string {
	quoted := make([]string, len(columns))
	for i, column := range columns {
		quoted[i] = d.QuoteIdent(column)
	}
	return strings.Join(quoted, ", ")
}

// Statement is a structured DDL intent
type Statement struct {
	Dialect     Dialect
	Verb        Verb
	Kind        ObjectKind
	Name        Name
	IfNotExists bool
	IfExists    bool
	Cascade     bool
	Clauses     []Clause
}

// Describe is a short human label such as "create sink ods.orders_to_sr_sink"
func (s Statement) Describe() string {
	return strings.ToLower(fmt.Sprintf("%s %s", s.Verb, s.Kind)) + " " + s.Name.String()
}

// SQL renders the statement text
func (s Statement) SQL() string {
	var b strings.Builder
	b.WriteString(string(s.Verb))
	b.WriteByte(' ')
	b.WriteString(string(s.Kind))
	switch {
	case s.IfNotExists:
		b.WriteString(" IF NOT EXISTS")
	case s.IfExists:
		b.WriteString(" IF EXISTS")
	}
	b.WriteByte(' ')
	b.WriteString(s.Name.Render(s.Dialect))
	for _, clause := range s.Clauses {
		if _, ok := clause.(inlineClause); ok {
			b.WriteByte(' ')
		} else {
			b.WriteByte('\n')
		}
		b.WriteString(clause.render(s.Dialect))
	}
	if s.Cascade {
		b.WriteString(" CASCADE")
	}
	b.WriteByte(';')
	return b.String()
}

func (s Statement) String() string {
	return s.SQL()
}
