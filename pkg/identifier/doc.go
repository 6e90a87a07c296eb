// Package identifier implements the card identifier value type.
//
// An Identifier is the unique serial number a proximity card reports to the
// reader: 1 to MaxLen bytes, historically 4, 7 or 10. Identifiers are plain
// values; two are equal iff they have the same length and the same bytes in
// the same order. The zero Identifier is "absent".
//
// Identifiers longer than MaxLen are truncated to their first MaxLen bytes
// when constructed. The same rule applies to enrollment capture and to every
// later comparison, so a truncated card still matches itself.
package identifier
