/*
Package origin fetches a target's page and rewrites it for same-origin demo rendering.

# Flow

	Proxy.Render(slug)
	  -> Registry.Lookup            (unknown slug: target.ErrNotFound, the one 404 case)
	  -> Fetcher.Fetch              (breaker, 10s bound, redirects, gzip/zstd, charset)
	  -> Inject                     (base, sentinel, interception, widget snippet)
	  -> ErrorDocument on any Failure

Every outcome other than an unknown slug renders as an HTML document. Failed
fetches render a minimal page that posts the failure reason to the embedding
window over the same channel the sentinel uses for success, so the delivery
state machine handles both uniformly.

# Relay

Scripts in the rewritten page still address the target's origin. The
interception script reroutes those calls to /api/demo/<slug>/relay, which
forwards them with Relay.Forward and streams the upstream response back.
*/
package origin
