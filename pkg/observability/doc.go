/*
Package observability provides tools for monitoring the statechart driver and the viewers.

It includes Prometheus collectors fed by machine lifecycle hooks and viewer polls,
and structured-logging hooks that audit every transition.
*/
package observability
