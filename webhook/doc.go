// Package webhook delivers governor lifecycle events to an external
// HTTP endpoint. The Extension implements the ext hook interfaces and
// posts one JSON envelope per event, so operators can route failures,
// scaling decisions, and alerts into chat, paging, or workflow tools.
//
// Hook errors are swallowed by the extension registry, so a slow or
// failing endpoint degrades notifications but never job processing.
package webhook
