// Package app provides the application service layer.
//
// Merger reconciles score events with cached match state, Intake drives one
// queue message through merge, cache, classification and broadcast, and Games
// serves cache reads and operator writes for the HTTP API. Depends on domain
// interfaces, not concrete implementations.
package app
