package http

import "html/template"

var shellTemplate = template.Must(template.New("shell").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta name="robots" content="noindex">
<title>{{.Label}} · Subsights demo</title>
<style>
html,body{margin:0;height:100%;font-family:system-ui,sans-serif}
#demo-frame{border:0;width:100%;height:100%;display:block}
</style>
</head>
<body data-slug="{{.Slug}}">
<iframe id="demo-frame" title="{{.Label}}" referrerpolicy="no-referrer"></iframe>
<script>
(function(){
var VIEW={{.ViewPath}},FALLBACK={{.DefaultPath}},STATUS={{.StatusType}};
var frame=document.getElementById("demo-frame");
var current=null,settled=false;
var ws=new WebSocket((location.protocol==="https:"?"wss://":"ws://")+location.host+VIEW);
function send(m){if(ws.readyState===1){ws.send(JSON.stringify(m));}}
window.addEventListener("message",function(e){
if(e.origin!==location.origin||!e.data||e.data.type!==STATUS){return;}
if(!current||current.mode!=="proxy"){return;}
send({type:STATUS,status:e.data.status,reason:e.data.reason||"",attempt:e.data.attempt||current.attempt,performance:e.data.performance});
});
frame.addEventListener("load",function(){
if(current&&current.mode==="embed"){send({type:"embed-load",attempt:current.attempt});}
});
ws.onmessage=function(e){
var m;try{m=JSON.parse(e.data);}catch(err){return;}
if(m.type==="render"){current=m;document.body.setAttribute("data-mode",m.mode);frame.src=m.src;}
else if(m.type==="settled"){settled=true;document.body.setAttribute("data-settled",m.mode);}
};
ws.onclose=function(){
if(!settled){settled=true;document.body.setAttribute("data-mode","default");frame.src=FALLBACK;}
};
})();
</script>
</body>
</html>
`))

var defaultTemplate = template.Must(template.New("default").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta name="robots" content="noindex">
<title>{{.Label}}</title>
<style>
body{margin:0;font-family:system-ui,sans-serif;background:#f6f7f9;color:#1f2328}
main{max-width:42rem;margin:4rem auto;padding:0 1.5rem}
h1{font-size:1.75rem;margin-bottom:.5rem}
a{color:#0b5cad}
</style>
</head>
<body data-demo-mode="default">
<main>
<h1>{{.Label}}</h1>
<p>This is a preview of the assistant for <a href="{{.URL}}" target="_blank" rel="noopener">{{.Host}}</a>.</p>
{{if .Misconfigured}}<p>The assistant for this demo is not configured.</p>{{end}}
</main>
{{.Snippet}}
</body>
</html>
`))

type shellData struct {
	Slug        string
	Label       string
	ViewPath    string
	DefaultPath string
	StatusType  string
}

type defaultData struct {
	Label         string
	URL           string
	Host          string
	Snippet       template.HTML
	Misconfigured bool
}
