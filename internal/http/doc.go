// Package http exposes the schedule and display number operations over HTTP.
//
// Every route under /api/owners/{ownerID} acts on behalf of that owner:
//   - POST /events: create a one-shot or recurring event. Body fields follow
//     `eventRequest` in dto.go. A recurrence rule is built only when both
//     `isRecurring` and `recurringPattern` are given. Responds with
//     {"master", "instances"}.
//   - GET /events/{eventID}: the event and, for a recurring master, its instances.
//   - DELETE /events/{eventID}: delete the event; a recurring master takes its
//     instances with it.
//   - GET /events/range?startDate=&endDate=: events whose time lies within the
//     inclusive range.
//   - POST /sequences/{kind}: reserve the next display number for kind.
//
// GET /healthz reports liveness.
//
// Responses use the envelope
// {"success","message","data","errorCode","errors","timestamp"}. Timestamps
// accept RFC 3339 or a zone-less local form interpreted in the configured
// location.
package http
