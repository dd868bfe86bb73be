// Package pipeline runs the stages of a crawl.
//
// A Pipeline executes Steps in order against shared state and stops at the
// first failing step. A BatchProcessor fans a per-item function out over
// goroutines with errgroup, bounding how many run at once. Item failures,
// panics included, are collected rather than cancelling the batch.
package pipeline
