// Package lexical turns text into weighted term vectors and evaluates
// web-search style queries against them.
//
// Text is lowercased and split into runs of Unicode letters and digits.
// English stop words are dropped and a light suffix stemmer folds common
// inflections ("refunds", "refunded", "refunding" all become "refund").
// Positions are 1-based and count stop words, so phrases keep their
// spacing.
//
// Queries follow the usual search-box conventions:
//
//	refund policy        both terms must appear
//	refund or credit     either term may appear
//	refund -duplicate    "duplicate" must not appear
//	"late fee"           quoted words are treated as separate required terms
//
// The package has no storage concerns; callers persist Vector values and
// rank them with Rank.
package lexical
