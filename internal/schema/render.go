// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package schema

import "strings"

// renderRow renders one table as row-store DDL: AUTOINCREMENT primary
// keys, inline UNIQUE/PRIMARY KEY/FK constraints, CREATE INDEX for
// everything else — the variant internal/store.OpenSQLite's engine
// runs directly.
func renderRow(t Table) string {
	var sb strings.Builder
	sb.WriteString("CREATE TABLE IF NOT EXISTS ")
	sb.WriteString(t.Name)
	sb.WriteString(" (\n")

	var lines []string
	for _, c := range t.Columns {
		lines = append(lines, "  "+rowColumnDef(c))
	}
	if len(t.PrimaryKeyCols) > 0 {
		lines = append(lines, "  PRIMARY KEY ("+strings.Join(t.PrimaryKeyCols, ", ")+")")
	}
	for _, u := range t.Unique {
		lines = append(lines, "  UNIQUE ("+strings.Join(u, ", ")+")")
	}
	sb.WriteString(strings.Join(lines, ",\n"))
	sb.WriteString("\n);\n")

	for _, idx := range t.Indexes {
		sb.WriteString(indexStatement(t.Name, idx, false))
	}
	return sb.String()
}

func rowColumnDef(c Column) string {
	var sb strings.Builder
	sb.WriteString(c.Name)
	sb.WriteString(" ")
	sb.WriteString(c.Type)
	if c.PrimaryKey {
		sb.WriteString(" PRIMARY KEY AUTOINCREMENT")
	}
	if c.NotNull {
		sb.WriteString(" NOT NULL")
	}
	if c.Default != "" {
		sb.WriteString(" DEFAULT ")
		sb.WriteString(c.Default)
	}
	if c.Check != "" {
		sb.WriteString(" CHECK(")
		sb.WriteString(c.Check)
		sb.WriteString(")")
	}
	if c.References != "" {
		sb.WriteString(" REFERENCES ")
		sb.WriteString(c.References)
	}
	return sb.String()
}

// renderColumnar renders one table as columnar-variant DDL:
// INTEGER widened to BIGINT where Widen is set, no inline FK clauses
// (no cross-table enforcement in the OLAP-facing engine), a single-
// column PrimaryKey column becomes a plain INTEGER PRIMARY KEY (sqlite
// still rowid-aliases it — the nearest equivalent to a sequence this
// engine has) instead of explicit AUTOINCREMENT bookkeeping, and every
// uniqueness constraint — including composite primary keys — is
// established with an explicit CREATE UNIQUE INDEX statement rather
// than an inline table constraint.
func renderColumnar(t Table) string {
	var sb strings.Builder
	sb.WriteString("CREATE TABLE IF NOT EXISTS ")
	sb.WriteString(t.Name)
	sb.WriteString(" (\n")

	var lines []string
	for _, c := range t.Columns {
		lines = append(lines, "  "+columnarColumnDef(c))
	}
	sb.WriteString(strings.Join(lines, ",\n"))
	sb.WriteString("\n);\n")

	for _, idx := range t.Indexes {
		sb.WriteString(indexStatement(t.Name, idx, false))
	}
	for _, u := range t.Unique {
		sb.WriteString(indexStatement(t.Name, u, true))
	}
	if len(t.PrimaryKeyCols) > 0 {
		sb.WriteString(indexStatement(t.Name, t.PrimaryKeyCols, true))
	}
	return sb.String()
}

func columnarColumnDef(c Column) string {
	var sb strings.Builder
	sb.WriteString(c.Name)
	sb.WriteString(" ")
	typ := c.Type
	if c.Widen && typ == "INTEGER" {
		typ = "BIGINT"
	}
	sb.WriteString(typ)
	if c.PrimaryKey {
		sb.WriteString(" PRIMARY KEY")
	}
	if c.NotNull {
		sb.WriteString(" NOT NULL")
	}
	if c.Default != "" {
		sb.WriteString(" DEFAULT ")
		sb.WriteString(c.Default)
	}
	if c.Check != "" {
		sb.WriteString(" CHECK(")
		sb.WriteString(c.Check)
		sb.WriteString(")")
	}
	return sb.String()
}

func indexStatement(table string, cols []string, unique bool) string {
	name := "idx_" + table + "_" + strings.Join(cols, "_")
	kw := "CREATE INDEX"
	if unique {
		kw = "CREATE UNIQUE INDEX"
	}
	return kw + " IF NOT EXISTS " + name + " ON " + table + " (" + strings.Join(cols, ", ") + ");\n"
}

// RenderRow and RenderColumnar are the full canonical schema rendered
// for each backend variant, in Tables' leaf-first order.
func RenderRow() string {
	var sb strings.Builder
	for _, t := range Tables {
		sb.WriteString(renderRow(t))
	}
	return sb.String()
}

func RenderColumnar() string {
	var sb strings.Builder
	for _, t := range Tables {
		sb.WriteString(renderColumnar(t))
	}
	return sb.String()
}
