// Package broadcast fans a single message out to a filtered subset of
// registry entries.
//
// Fan-out iterates over a registry snapshot so no lock is held during network
// sends. A failed send never aborts delivery to the remaining recipients; the
// failing client is evicted from the registry after the scan completes.
package broadcast
