// Package query models entity selections: key clauses, paginated queries,
// and their boundary form.
//
// Clause is a sealed interface so backends can switch exhaustively:
//
//	switch c := q.Clause.(type) {
//	case nil:
//	    // unfiltered scan
//	case KeysClause:
//	    // model + exact key tuple
//	}
//
// Identity literals are parsed eagerly. A bad literal fails the whole call
// with a *ParseError before anything reaches a backend.
package query
