package origin

import (
	"fmt"
	"strings"

	"github.com/alanensastegui/subsights-demo/backend/internal/shared/types"
	"github.com/bytedance/sonic"
	"github.com/dop251/goja"
	"github.com/microcosm-cc/bluemonday"
)

const (
	// MessageType tags the cross-document status announcement.
	MessageType = "demo-proxy-status"
	// SentinelMarker marks an already-injected document.
	SentinelMarker = "data-demo-proxy-sentinel"
	// InterceptMarker marks the network interception script.
	InterceptMarker = "data-demo-proxy-intercept"
	// ErrorMarker marks an error-announcement document.
	ErrorMarker = "data-demo-proxy-error"
)

// jsString renders s as a JavaScript string literal safe inside a <script> element.
func jsString(s string) string {
	out, err := sonic.ConfigStd.MarshalToString(s)
	if err != nil {
		return `""`
	}
	return out
}

// RelayPath is the relay prefix for slug; the encoded absolute URL is
// appended. The interception script prefixes it with the document's own
// origin, because the injected base directive would otherwise resolve it
// against the target.
func RelayPath(slug string) string {
	return "/api/demo/" + slug + "/relay?url="
}

// announceJS posts the status message to the embedding window. The attempt
// token comes from the document URL so the host can match it.
const announceJS = `function(payload){` +
	`try{var q=/[?&]attempt=([^&#]*)/.exec(window.location.search);` +
	`payload.type=%s;payload.attempt=q?decodeURIComponent(q[1]):"";` +
	`var t=window.performance&&window.performance.now?window.performance.now():0;` +
	`payload.performance={loadTimeMs:Math.round(t),domNodes:document.getElementsByTagName("*").length};` +
	`if(window.parent&&window.parent!==window){window.parent.postMessage(payload,window.location.origin);}` +
	`}catch(e){}}`

func announcer() string {
	return fmt.Sprintf(announceJS, jsString(MessageType))
}

// SentinelScript announces a successful proxy render once the DOM is ready.
func SentinelScript() string {
	return `<script ` + SentinelMarker + `="1">(function(){var send=` + announcer() + `;` +
		`var ok=function(){send({status:"ok"});};` +
		`if(document.readyState==="loading"){document.addEventListener("DOMContentLoaded",ok);}else{ok();}` +
		`})();</script>`
}

const interceptJS = `(function(w){
var ORIGIN=%s,RELAY=w.location.origin+%s;
function route(input){
try{var u=new URL(String(input),ORIGIN);if(u.origin!==ORIGIN){return null;}return RELAY+encodeURIComponent(u.href);}catch(e){return null;}
}
if(typeof w.fetch==="function"){
var nativeFetch=w.fetch;
w.fetch=function(input,init){
var isReq=typeof w.Request==="function"&&input instanceof w.Request;
var routed=route(isReq?input.url:input);
if(routed===null){return nativeFetch.call(this,input,init);}
return nativeFetch.call(this,isReq?new w.Request(routed,input):routed,init);
};
}
if(typeof w.XMLHttpRequest==="function"){
var nativeOpen=w.XMLHttpRequest.prototype.open;
w.XMLHttpRequest.prototype.open=function(method,url){
var args=Array.prototype.slice.call(arguments);
var routed=route(url);
if(routed!==null){args[1]=routed;}
return nativeOpen.apply(this,args);
};
}
})(window);`

// InterceptScript reroutes fetch and XMLHttpRequest calls aimed at origin
// through the relay for slug.
func InterceptScript(origin, slug string) string {
	return `<script ` + InterceptMarker + `="1">` + interceptBody(origin, slug) + `</script>`
}

func interceptBody(origin, slug string) string {
	js := fmt.Sprintf(interceptJS, jsString(origin), jsString(RelayPath(slug)))
	return strings.ReplaceAll(js, "\n", "")
}

var messagePolicy = bluemonday.StrictPolicy()

const errorDocument = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="robots" content="noindex">
<title>Preview unavailable</title>
</head>
<body ` + ErrorMarker + `=%s>
<p>%s</p>
<script>(function(){var send=%s;send(%s);})();</script>
</body>
</html>
`

// ErrorDocument renders f as a page that announces the failure to the
// embedding window.
func ErrorDocument(f *Failure) string {
	reason := f.Reason
	if !reason.Valid() {
		reason = types.ReasonProxyError
	}
	message := f.Message
	if message == "" {
		message = reason.Message()
	}

	payload := map[string]interface{}{
		"status": string(types.StatusError),
		"reason": string(reason),
	}
	if f.Status != 0 {
		payload["httpStatus"] = f.Status
	}
	encoded, err := sonic.ConfigStd.MarshalToString(payload)
	if err != nil {
		encoded = `{"status":"error","reason":"proxy-error"}`
	}

	return fmt.Sprintf(errorDocument,
		jsString(string(reason)),
		messagePolicy.Sanitize(message),
		announcer(),
		encoded,
	)
}

// SelfCheck compiles every generated script so a broken template fails at startup.
func SelfCheck() error {
	scripts := map[string]string{
		"sentinel":  scriptBody(SentinelScript()),
		"intercept": interceptBody("https://example.com", "self-check"),
		"error":     scriptBody(ErrorDocument(&Failure{Reason: types.ReasonProxyHTTPError, Status: 500})),
	}
	for name, src := range scripts {
		if _, err := goja.Compile(name, src, true); err != nil {
			return fmt.Errorf("compile %s script: %w", name, err)
		}
	}
	return nil
}

// scriptBody returns the text of the first inline script in markup.
func scriptBody(markup string) string {
	start := strings.Index(markup, "<script")
	if start < 0 {
		return ""
	}
	open := strings.Index(markup[start:], ">")
	end := strings.Index(markup[start:], "</script>")
	if open < 0 || end < 0 {
		return ""
	}
	return markup[start+open+1 : start+end]
}
