// Package domain defines the core domain types and interfaces.
//
// Score events, the status lifecycle, channel classification and the
// consumer-side contracts (GameCache, Broadcaster) live here. No I/O - just
// types, rules and contracts, so adapters and the app layer can share them
// without circular imports.
package domain
