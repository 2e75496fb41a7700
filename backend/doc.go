// Package backend defines the contract the governor consumes from the
// durable job queue: enqueue, eligible-dequeue, ack, and nack. The
// backend owns payload persistence and redelivery semantics; the
// governor owns nothing past handing a terminal ack/nack back.
//
// store/memory and store/redis provide implementations. Production
// deployments typically wrap an existing queueing system instead.
package backend
