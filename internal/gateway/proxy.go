package gateway

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
)

// NewProxy forwards verified requests to the downstream services behind the
// gateway. Identity headers are already set by the filter by the time a
// request reaches the proxy.
func NewProxy(downstreamURL string) (http.Handler, error) {
	target, err := url.Parse(downstreamURL)
	if err != nil {
		return nil, fmt.Errorf("bad downstream url %q. Err: %w", downstreamURL, err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("downstream url %q must be absolute", downstreamURL)
	}

	return httputil.NewSingleHostReverseProxy(target), nil
}
