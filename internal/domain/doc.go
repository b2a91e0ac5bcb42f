// Package domain defines the reaction model and the store contract.
//
// Reaction, ReactionKind, Stats and the ReactionStore interface live here so that
// the app layer and every storage adapter share one vocabulary. Aggregates are
// computed from records (ComputeStats), never stored.
package domain
