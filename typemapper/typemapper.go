// Package typemapper translates column types across the two provisioning hops:
// MySQL to RisingWave, then RisingWave to StarRocks.
package typemapper

import (
	"strings"

	"github.com/datazip-inc/rwcdc/utils"
)

type rule struct {
	target string
	// re-attach the parenthesized suffix of the input verbatim
	keepSuffix bool
}

var mysqlToRisingWave = map[string]rule{
	// Integer types
	"TINYINT":   {target: "SMALLINT"},
	"SMALLINT":  {target: "SMALLINT"},
	"MEDIUMINT": {target: "INTEGER"},
	"INT":       {target: "INTEGER"},
	"INTEGER":   {target: "INTEGER"},
	"BIGINT":    {target: "BIGINT"},
	"YEAR":      {target: "SMALLINT"},

	// Floating point and exact numerics
	"FLOAT":            {target: "REAL"},
	"REAL":             {target: "DOUBLE PRECISION"},
	"DOUBLE":           {target: "DOUBLE PRECISION"},
	"DOUBLE PRECISION": {target: "DOUBLE PRECISION"},
	"DECIMAL":          {target: "DECIMAL", keepSuffix: true},
	"NUMERIC":          {target: "NUMERIC", keepSuffix: true},
	"DEC":              {target: "DECIMAL", keepSuffix: true},

	// String types
	"CHAR":       {target: "CHAR", keepSuffix: true},
	"VARCHAR":    {target: "VARCHAR", keepSuffix: true},
	"TINYTEXT":   {target: "TEXT"},
	"TEXT":       {target: "TEXT"},
	"MEDIUMTEXT": {target: "TEXT"},
	"LONGTEXT":   {target: "TEXT"},
	"ENUM":       {target: "VARCHAR(255)"},
	"SET":        {target: "TEXT"},

	// Binary types
	"BINARY":     {target: "BYTEA"},
	"VARBINARY":  {target: "BYTEA"},
	"TINYBLOB":   {target: "BYTEA"},
	"BLOB":       {target: "BYTEA"},
	"MEDIUMBLOB": {target: "BYTEA"},
	"LONGBLOB":   {target: "BYTEA"},

	// Date and time types
	"DATE":      {target: "DATE"},
	"TIME":      {target: "TIME"},
	"DATETIME":  {target: "TIMESTAMP"},
	"TIMESTAMP": {target: "TIMESTAMP"},

	"JSON":    {target: "JSONB"},
	"BOOLEAN": {target: "BOOLEAN"},
	"BOOL":    {target: "BOOLEAN"},
}

// unsigned integers widen to the next type able to hold their full range
var mysqlUnsignedToRisingWave = map[string]string{
	"TINYINT":   "SMALLINT",
	"SMALLINT":  "INTEGER",
	"MEDIUMINT": "INTEGER",
	"INT":       "BIGINT",
	"INTEGER":   "BIGINT",
	"BIGINT":    "DECIMAL(20,0)",
}

var risingWaveToStarRocks = map[string]rule{
	"SMALLINT": {target: "SMALLINT"},
	"INT2":     {target: "SMALLINT"},
	"INTEGER":  {target: "INT"},
	"INT":      {target: "INT"},
	"INT4":     {target: "INT"},
	"BIGINT":   {target: "BIGINT"},
	"INT8":     {target: "BIGINT"},

	"REAL":             {target: "FLOAT"},
	"FLOAT4":           {target: "FLOAT"},
	"DOUBLE PRECISION": {target: "DOUBLE"},
	"FLOAT8":           {target: "DOUBLE"},
	"DECIMAL":          {target: "DECIMAL", keepSuffix: true},
	"NUMERIC":          {target: "DECIMAL", keepSuffix: true},

	"CHAR":              {target: "CHAR", keepSuffix: true},
	"CHARACTER":         {target: "CHAR", keepSuffix: true},
	"VARCHAR":           {target: "VARCHAR", keepSuffix: true},
	"CHARACTER VARYING": {target: "VARCHAR", keepSuffix: true},
	"TEXT":              {target: "STRING"},

	"BYTEA": {target: "VARBINARY"},

	"DATE":                        {target: "DATE"},
	"TIME":                        {target: "TIME"},
	"TIME WITHOUT TIME ZONE":      {target: "TIME"},
	"TIMESTAMP":                   {target: "DATETIME"},
	"TIMESTAMP WITHOUT TIME ZONE": {target: "DATETIME"},
	"TIMESTAMPTZ":                 {target: "DATETIME"},
	"TIMESTAMP WITH TIME ZONE":    {target: "DATETIME"},

	"JSON":    {target: "JSON"},
	"JSONB":   {target: "JSON"},
	"BOOLEAN": {target: "BOOLEAN"},
	"BOOL":    {target: "BOOLEAN"},
}

// parsedType is a type string split into its keyword, its parenthesized
// suffix as written, and its integer sign modifier
type parsedType struct {
	base     string
	suffix   string
	unsigned bool
}

func parse(raw string) parsedType {
	rest := strings.TrimSpace(raw)
	suffix := ""
	if open := strings.IndexByte(rest, '('); open >= 0 {
		// enum and set members may contain parentheses themselves
		if closing := strings.LastIndexByte(rest, ')'); closing > open {
			suffix = rest[open : closing+1]
			rest = rest[:open] + " " + rest[closing+1:]
		} else {
			suffix = rest[open:]
			rest = rest[:open]
		}
	}

	parsed := parsedType{suffix: suffix}
	var words []string
	for _, word := range strings.Fields(strings.ToUpper(rest)) {
		switch word {
		case "UNSIGNED":
			parsed.unsigned = true
		case "SIGNED", "ZEROFILL":
		default:
			words = append(words, word)
		}
	}
	parsed.base = strings.Join(words, " ")
	return parsed
}

func apply(r rule, p parsedType) string {
	if r.keepSuffix && p.suffix != "" {
		return r.target + p.suffix
	}
	return r.target
}

// MySQLToRisingWave maps a MySQL column type to its RisingWave equivalent
func MySQLToRisingWave(mysqlType string) (string, error) {
	p := parse(mysqlType)

	if p.base == "BIT" {
		if p.suffix == "" || p.suffix == "(1)" {
			return "BOOLEAN", nil
		}
		return "BYTEA", nil
	}

	if p.unsigned {
		if target, ok := mysqlUnsignedToRisingWave[p.base]; ok {
			return target, nil
		}
	}

	r, ok := mysqlToRisingWave[p.base]
	if !ok {
		return "", utils.Errorf(utils.TypeMappingError, "unsupported MySQL type: %s", mysqlType)
	}
	return apply(r, p), nil
}

// RisingWaveToStarRocks maps a RisingWave column type to its StarRocks equivalent
func RisingWaveToStarRocks(rwType string) (string, error) {
	p := parse(rwType)
	r, ok := risingWaveToStarRocks[p.base]
	if !ok {
		return "", utils.Errorf(utils.TypeMappingError, "unsupported RisingWave type: %s", rwType)
	}
	return apply(r, p), nil
}

// MySQLToStarRocks composes both hops
func MySQLToStarRocks(mysqlType string) (string, error) {
	rwType, err := MySQLToRisingWave(mysqlType)
	if err != nil {
		return "", err
	}
	return RisingWaveToStarRocks(rwType)
}

// SinkCast returns the RisingWave type a MySQL column must be cast to before
// it is written to StarRocks, and false when the column passes through as is.
func SinkCast(mysqlType string) (string, bool) {
	p := parse(mysqlType)
	switch p.base {
	case "DATETIME", "TIMESTAMP":
		return "TIMESTAMP", true
	case "TINYINT":
		return "SMALLINT", true
	default:
		return "", false
	}
}
