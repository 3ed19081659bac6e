// Package write diverts record persistence to the remote record API.
//
// The remote system has no INSERT or UPDATE statements. A Redirector turns
// "persist a new record" into a create call and "persist changed fields"
// into an update call, and refuses both while the sandbox gate is closed.
//
// Object tracks one record through its new and persisted states together
// with the ordered set of fields changed since the last save.
package write
