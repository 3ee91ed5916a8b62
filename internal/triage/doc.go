// Package triage categorizes and prioritizes work items. It defines the
// Categorizer (inference plus deterministic scoring and quick-win detection),
// the Orchestrator (chunked, paced fan-out), the Service (runs, dedup, async
// dispatch, write-back), the Store interface, and the domain models.
package triage
