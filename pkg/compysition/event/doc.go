// Package event implements the compysition event data model: an immutable
// identity, a polymorphic payload with well-defined format conversions
// (plain, tree, mapping, form), and a widening-only conversion rule.
//
// Design influences:
//   - compysition (fiebiga/compysition, Python) — event_id/meta_id identity
//     rules, per-class conversion_methods tables, widening-only convert(),
//     the HTTP status mapping for attached errors.
//   - flowgraph's event package — functional-option construction
//     (New/NewFromParent-style), correlation-by-default identity defaults.
//
// Every concrete event type (PlainEvent, TreeEvent, MappingEvent, FormEvent,
// and their HTTP-overlaid counterparts) embeds base for the identity fields
// shared across variants, and implements Data/SetData/Variant/Convert/Clone
// for its own payload shape.
package event
