// Package queryir provides the query tree compiled to SOQL text.
//
// Application code (through package relation) and the aggregate normalizer
// build trees of Node values; package soql renders them:
//
//	[relation / aggregate] → [queryir tree] → [soql.Compiler] → text
//
// SEALED INTERFACE:
//
// Node is a sealed interface using the marker method pattern. Only pointer
// types in this package implement it, so the compiler can switch over every
// kind and reject anything else with an explicit error instead of guessing.
//
// DIALECT RULES CARRIED BY THE TREE:
//
//   - Attributes are unqualified unless Qualify was called.
//   - Aliases and aggregate aliases render without a keyword.
//   - Values are Literal nodes quoted inline; there are no placeholders.
//   - Subqueries are positional, parenthesized and never correlated.
//
// Validate reports trees that compile but are likely to be rejected by the
// remote system, such as an empty projection.
package queryir
