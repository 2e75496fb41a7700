package redis

// Redis key naming conventions. All keys carry the "governor:" prefix
// to avoid collisions with other tenants of the same Redis.

const keyPrefix = "governor:"

// ── Job keys ──

// jobKey returns the hash key for a job: governor:job:{id}
func jobKey(id string) string { return keyPrefix + "job:" + id }

// pendingKey returns the Sorted Set of pending job IDs for a queue:
// governor:pending:{queue}. Score orders by priority then enqueue time.
func pendingKey(queueName string) string { return keyPrefix + "pending:" + queueName }

// ── Alert keys ──

// alertKey returns the key for an alert: governor:alert:{id}
func alertKey(id string) string { return keyPrefix + "alert:" + id }

// alertIDsKey is the Set tracking all alert IDs for enumeration.
const alertIDsKey = keyPrefix + "alert_ids"

// alertActiveKey is the Hash mapping "{queue}|{type}" to the active
// (unacknowledged) alert ID, for dedup lookups.
const alertActiveKey = keyPrefix + "alert_active"

// ── DLQ keys ──

// dlqKey returns the key for a dead letter entry: governor:dlq:{id}
func dlqKey(id string) string { return keyPrefix + "dlq:" + id }

// dlqIDsKey is the Set tracking all DLQ entry IDs for enumeration.
const dlqIDsKey = keyPrefix + "dlq_ids"

// ── Cron keys ──

// cronKey returns the key for a cron entry: governor:cron:{id}
func cronKey(id string) string { return keyPrefix + "cron:" + id }

// cronIDsKey is the Set tracking all cron entry IDs for enumeration.
const cronIDsKey = keyPrefix + "cron_ids"

// cronNamesKey is the Hash mapping cron names to IDs for duplicate
// detection.
const cronNamesKey = keyPrefix + "cron_names"

// ── Cluster keys ──

// nodeKey returns the key for a cluster node: governor:node:{id}
func nodeKey(id string) string { return keyPrefix + "node:" + id }

// nodeIDsKey is the Set tracking all node IDs for enumeration.
const nodeIDsKey = keyPrefix + "node_ids"

// leaderKey holds the current leader's node ID with the lease TTL.
const leaderKey = keyPrefix + "leader"

// ── Metrics keys ──

// metricsKey returns the List of recent samples for a queue, newest
// first: governor:metrics:{queue}
func metricsKey(queueName string) string { return keyPrefix + "metrics:" + queueName }
