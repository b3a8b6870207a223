// Package api contains the HTTP handlers for the task, whiteboard and
// overlay routes, plus the mapping from internal errors to sanitized HTTP
// responses.
package api
