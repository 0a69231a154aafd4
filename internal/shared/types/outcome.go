package types

// Mode is a strategy for rendering a target.
type Mode string

const (
	ModeProxy   Mode = "proxy"
	ModeEmbed   Mode = "embed"
	ModeDefault Mode = "default"
)

// Modes lists every mode in fallback order.
var Modes = []Mode{ModeProxy, ModeEmbed, ModeDefault}

// Valid reports whether m is one of the three modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeProxy, ModeEmbed, ModeDefault:
		return true
	}
	return false
}

// ParseMode converts s to a Mode, reporting false for anything else.
func ParseMode(s string) (Mode, bool) {
	m := Mode(s)
	return m, m.Valid()
}

func (m Mode) String() string { return string(m) }

// Reason explains why a mode was abandoned.
type Reason string

const (
	ReasonProxyTimeout      Reason = "proxy-timeout"
	ReasonProxyError        Reason = "proxy-error"
	ReasonProxyFetchFailed  Reason = "proxy-fetch-failed"
	ReasonProxyHTTPError    Reason = "proxy-http-error"
	ReasonProxyNotHTML      Reason = "proxy-not-html"
	ReasonProxyTooLarge     Reason = "proxy-too-large"
	ReasonIframeBlocked     Reason = "iframe-blocked"
	ReasonIframeProbeFailed Reason = "iframe-probe-failed"
	ReasonForcePolicy       Reason = "force-policy"
)

// Reasons is the closed reason set.
var Reasons = []Reason{
	ReasonProxyTimeout,
	ReasonProxyError,
	ReasonProxyFetchFailed,
	ReasonProxyHTTPError,
	ReasonProxyNotHTML,
	ReasonProxyTooLarge,
	ReasonIframeBlocked,
	ReasonIframeProbeFailed,
	ReasonForcePolicy,
}

// Valid reports whether r belongs to the closed reason set.
func (r Reason) Valid() bool {
	for _, known := range Reasons {
		if r == known {
			return true
		}
	}
	return false
}

// IsProxy reports whether r describes a proxy attempt failure.
func (r Reason) IsProxy() bool {
	switch r {
	case ReasonProxyTimeout, ReasonProxyError, ReasonProxyFetchFailed,
		ReasonProxyHTTPError, ReasonProxyNotHTML, ReasonProxyTooLarge:
		return true
	}
	return false
}

// Message returns the visitor-facing explanation for a reason.
func (r Reason) Message() string {
	switch r {
	case ReasonProxyTimeout:
		return "The site took too long to respond."
	case ReasonProxyError:
		return "The site could not be reached."
	case ReasonProxyFetchFailed:
		return "The site's response could not be read."
	case ReasonProxyHTTPError:
		return "The site returned an error."
	case ReasonProxyNotHTML:
		return "The site did not return a web page."
	case ReasonProxyTooLarge:
		return "The site's page is too large to preview."
	case ReasonIframeBlocked:
		return "The site does not allow being embedded."
	case ReasonIframeProbeFailed:
		return "The site could not be checked for embedding."
	case ReasonForcePolicy:
		return "A display mode was selected manually."
	}
	return "Unknown reason."
}

func (r Reason) String() string { return string(r) }

// Status is carried by the cross-document announcement.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)
