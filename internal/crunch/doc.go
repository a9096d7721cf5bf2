// Package crunch implements background crunching: jobs describing which
// stretches of simulation to compute, crunchers that compute them, and the
// Manager that supervises the crunchers and merges their output into the
// history tree.
//
// The Manager is the heart of the package. Its Sync method runs under the
// tree's write lock and, in one pass, reaps crunchers whose jobs were
// cancelled, drains every live cruncher's work queue into the tree, and
// hires, replaces, updates, or retires crunchers according to each job's
// state. A cruncher never touches the tree itself; the work queue is the
// only channel between a cruncher and the rest of the system.
//
// Cruncher implementations are pluggable backends registered with
// RegisterBackend; the local and pooled packages provide the built-in ones.
package crunch
