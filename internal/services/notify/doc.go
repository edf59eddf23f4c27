// Package notify queues key-change notifications until the user dismisses
// them.
package notify
