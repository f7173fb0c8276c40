// Package aggregate folds job outcomes into the final feature table and
// failures list. Row order follows case discovery order and column order
// follows first-seen feature order, so a rerun produces an identical table
// regardless of worker count or completion order.
package aggregate
