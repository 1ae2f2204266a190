package dialect

import (
	"strings"

	"github.com/leapstack-labs/dbdeck/pkg/core"
)

// Builder provides a fluent API for constructing dialects.
type Builder struct {
	dialect *Dialect
}

// NewDialect creates a new dialect builder with the given name.
// Defaults are ANSI: double-quoted identifiers, ? placeholders, LIMIT/OFFSET.
func NewDialect(name string) *Builder {
	return &Builder{
		dialect: &Dialect{
			Name: name,
			Identifiers: core.IdentifierConfig{
				Quote:    `"`,
				QuoteEnd: `"`,
				Escape:   `""`,
			},
			Placeholder:  core.PlaceholderQuestion,
			Pagination:   core.PaginateLimitOffset,
			LikeOperator: "LIKE",
			TextCast:     "CAST(%s AS TEXT)",
		},
	}
}

// Identifiers sets the identifier quoting configuration.
func (b *Builder) Identifiers(quote, quoteEnd, escape string) *Builder {
	b.dialect.Identifiers = core.IdentifierConfig{
		Quote:    quote,
		QuoteEnd: quoteEnd,
		Escape:   escape,
	}
	return b
}

// PlaceholderStyle sets the placeholder style for query parameters.
func (b *Builder) PlaceholderStyle(style core.PlaceholderStyle) *Builder {
	b.dialect.Placeholder = style
	return b
}

// Pagination sets the result window clause style.
func (b *Builder) Pagination(style core.PaginationStyle) *Builder {
	b.dialect.Pagination = style
	return b
}

// Like sets the substring-match operator.
func (b *Builder) Like(op string) *Builder {
	b.dialect.LikeOperator = op
	return b
}

// TextCast sets the fmt pattern used to cast a column to text.
func (b *Builder) TextCast(pattern string) *Builder {
	b.dialect.TextCast = pattern
	return b
}

// Numeric adds numeric type names.
func (b *Builder) Numeric(types ...string) *Builder {
	b.dialect.numeric = appendLower(b.dialect.numeric, types)
	return b
}

// PlainText adds plain-text type names.
func (b *Builder) PlainText(types ...string) *Builder {
	b.dialect.plainText = appendLower(b.dialect.plainText, types)
	return b
}

// Boolean adds boolean type names.
func (b *Builder) Boolean(types ...string) *Builder {
	b.dialect.boolean = appendLower(b.dialect.boolean, types)
	return b
}

// Temporal adds date/time type names.
func (b *Builder) Temporal(types ...string) *Builder {
	b.dialect.temporal = appendLower(b.dialect.temporal, types)
	return b
}

// UUID adds UUID type names.
func (b *Builder) UUID(types ...string) *Builder {
	b.dialect.uuid = appendLower(b.dialect.uuid, types)
	return b
}

// Build returns the constructed dialect.
func (b *Builder) Build() *Dialect {
	return b.dialect
}

func appendLower(dst, names []string) []string {
	for _, n := range names {
		dst = append(dst, strings.ToLower(n))
	}
	return dst
}
