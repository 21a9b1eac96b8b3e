// Package registry owns the mapping from client id to connection handle and
// language preference.
//
// All operations are safe for concurrent use. The mutex is held only for the
// duration of a map mutation or copy, never across a network send; broadcast
// iteration happens over a Snapshot instead of the live map.
package registry
