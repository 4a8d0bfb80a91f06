/*
Package session implements per-session statechart persistence.

A host such as the HTTP server or the MCP server drives many independent
machines over one compiled chart. The Manager restores a session's machine
from its snapshot, applies the operation, and saves the new snapshot, while
holding an in-process lock (and optionally a distributed one) for that session.
*/
package session
