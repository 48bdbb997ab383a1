// Package repository holds query helpers shared by the entity repositories.
package repository

import (
	"errors"
	"strings"
	"unicode"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Page selects a window of rows.
type Page struct {
	Limit  int
	Offset int
}

// Apply limits q to the page window; a zero limit leaves q unbounded.
func (p Page) Apply(q *bun.SelectQuery) *bun.SelectQuery {
	if p.Limit > 0 {
		q = q.Limit(p.Limit)
	}
	if p.Offset > 0 {
		q = q.Offset(p.Offset)
	}
	return q
}

// SearchTerms splits a free-text query on whitespace and commas.
func SearchTerms(search string) []string {
	return strings.FieldsFunc(search, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

// likeEscape is the LIKE escape character. A backslash would need dialect-specific quoting on MySQL.
const likeEscape = "!"

var likeEscaper = strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")

// ContainsPattern builds a LIKE pattern matching term as a literal, lower-cased substring.
func ContainsPattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
}

// ApplySearch requires every term to match at least one of the columns, case-insensitively.
func ApplySearch(q *bun.SelectQuery, columns []string, terms []string) *bun.SelectQuery {
	for _, term := range terms {
		pattern := ContainsPattern(term)
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			for _, col := range columns {
				q = q.WhereOr("LOWER(?) LIKE ? ESCAPE '"+likeEscape+"'", bun.Ident(col), pattern)
			}
			return q
		})
	}
	return q
}

// ApplyOrdering translates ordering fields ("name", "-created_at") through allowed into
// ORDER BY clauses. Unknown fields are ignored; fallback applies when nothing matched.
// tieBreaker is appended last to keep pagination stable unless its column is already ordered on.
func ApplyOrdering(q *bun.SelectQuery, fields []string, allowed map[string]string, fallback []string, tieBreaker string) *bun.SelectQuery {
	var clauses []string
	for _, f := range fields {
		f = strings.TrimSpace(f)
		desc := strings.HasPrefix(f, "-")
		col, ok := allowed[strings.TrimPrefix(f, "-")]
		if !ok {
			continue
		}
		if desc {
			clauses = append(clauses, col+" DESC")
		} else {
			clauses = append(clauses, col+" ASC")
		}
	}
	if len(clauses) == 0 {
		clauses = append(clauses, fallback...)
	}
	if tieBreaker != "" && !orderedOn(clauses, tieBreaker) {
		clauses = append(clauses, tieBreaker)
	}
	return q.Order(clauses...)
}

func orderedOn(clauses []string, clause string) bool {
	col, _, _ := strings.Cut(clause, " ")
	for _, c := range clauses {
		if existing, _, _ := strings.Cut(c, " "); existing == col {
			return true
		}
	}
	return false
}

// IsUniqueViolation reports whether err was raised by a unique constraint.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "Duplicate entry")
}

// SupportsRowLocks reports whether db understands SELECT ... FOR UPDATE.
func SupportsRowLocks(db bun.IDB) bool {
	return db.Dialect().Name() != dialect.SQLite
}
