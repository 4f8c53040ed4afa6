package launchpad

import (
	"net/http"

	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
)

// CacheTransport returns a RoundTripper which keeps responses as files
// in dir and revalidates them with their ETag on every later read.
// Requests are sent with base, or http.DefaultTransport if base is nil.
// Responses served from the cache carry the header httpcache.XFromCache.
func CacheTransport(dir string, base http.RoundTripper) http.RoundTripper {
	t := httpcache.NewTransport(diskcache.New(dir))
	t.Transport = base
	return t
}
