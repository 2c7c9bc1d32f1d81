// Package session implements the core of the sync relay: the participant
// registry, the per-connection client pumps, and the hub event loop that
// classifies inbound events and applies each event's fan-out rule.
package session
