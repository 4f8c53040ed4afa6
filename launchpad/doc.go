/*
Package launchpad is a client for the Launchpad web service API.

Objects in the API are addressed by links, absolute URLs such as

	https://api.launchpad.net/devel/bugs/1234
	https://api.launchpad.net/devel/fuel
	https://api.launchpad.net/devel/~alice

and are read as JSON with GET and changed with PATCH.
Named operations are invoked by a POST of form values holding a
"ws.op" parameter. Operations creating an object, such as createBug,
respond with the new object's link in the Location header.

Requests are signed with OAuth 1.0 using the PLAINTEXT signature
method, from credentials stored in the format written by launchpadlib:

	[1]
	consumer_key = lpbug
	consumer_secret =
	access_token = 2Ss7rbbD4hFlbWn7ZtxN
	access_secret = Hn0cVqCwxvt0vZ8zF3lp...

Responses carrying an ETag may be kept on disk by a [CacheTransport]
and revalidated with If-None-Match on later reads.

https://help.launchpad.net/API/Hacking
https://api.launchpad.net/devel.html
*/
package launchpad
