// Package manager coordinates generation sessions. It is structured into
// small files by concern:
//
//   - manager.go: core Manager type and the record operations (create, get,
//     list, delete, models).
//   - config.go: ManagerConfig, collaborator interfaces and defaults;
//     NewWithConfig applies defaults.
//   - admission.go: optional session slots and shutdown accounting.
//   - session.go: Run, the streaming loop and its single terminal transition.
//   - stop.go: Stop and MarkFailed, the client-driven terminal writes.
//   - shutdown.go: draining and cancelling sessions in flight.
//   - outcome.go: session phases and loop outcomes.
//   - transport.go: the Transport contract and send helpers.
//   - status_report.go: readiness, active session count and health.
//   - events.go, eventpub_memory.go: lifecycle events.
//   - metrics.go: Prometheus collectors.
//
// Every terminal store write is conditional on the record still being
// processing, so the first of completion, failure, stop or delete wins and
// later ones are no-ops.
package manager
