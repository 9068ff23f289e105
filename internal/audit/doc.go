// Package audit records security-relevant authentication events.
// Events are handed to a sink asynchronously so a slow sink never
// blocks the login or refresh path.
package audit
