// Package services contains the core application logic: credential
// rotation, paginated collection, change tracking, outbox flushing and the
// mirror orchestrator that ties them together. Services depend only on
// ports and domain types, never on concrete adapters.
package services
