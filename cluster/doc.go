// Package cluster tracks the worker nodes participating in a deployment
// and elects a single leader among them.
//
// Each process registers a Node on start and refreshes its LastSeen
// timestamp on a heartbeat interval. Nodes that stop heartbeating are
// reaped after a staleness threshold so the registry reflects the live
// fleet.
//
// Leadership is a lease in the Store: one node holds the lock for a TTL
// and renews it on each heartbeat. Control loops that must run exactly
// once per fleet (autoscaling, alert evaluation, cron firing) check
// IsLeader before each tick. If the leader dies, its lease expires and
// another node acquires the lock on its next heartbeat.
package cluster
