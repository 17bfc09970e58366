// Package driven defines the secondary ports: interfaces the core services
// require from infrastructure adapters (local store, backend, upstream API,
// extraction collaborator). Adapters implement these; services depend only
// on the interfaces.
package driven
