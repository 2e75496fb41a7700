// Package ext defines the extension system for governor.
// Extensions are notified of lifecycle events (job dispatched, worker
// recycled, scale decision, alert raised, etc.) and can react to them:
// logging, metrics, tracing, paging.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about. Hook errors are logged and swallowed;
// an extension can never stall dispatch or scaling.
package ext
