/*
Package viewer implements the polling viewers: a log-message viewer and a
channel (archiver) viewer.

Each viewer owns a Poller that calls the feed on a fixed interval and renders
what comes back into a view supplied by the front-end. A transport error halts
the poller and is reported to the user; there is no automatic retry. Updating
the options restarts polling.
*/
package viewer
