/*
Package feed is the HTTP client of the feed endpoint polled by the viewers.

The endpoint answers in a JSONP-like envelope, a JSON object wrapped in
parentheses:

	GET  /feed?uid=U                          ({"items":[{"tstamp":1700000000000,"level":"INFO","source":"a.b","body":"..."}]})
	POST /feed  uid, sourceFilter, minLevel   (filter stored for U)
	POST /feed  uid, pattern                  ({"channels":[{"name":"a.b"}]})
	GET  /feed?uid=U                          ({"values":["1.5","???"]})

The log server and the archiver server share the same resource name; a Client
talks to one of them.
*/
package feed
