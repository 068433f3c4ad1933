package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/smart-box/internal/logic"
	"github.com/sweeney/smart-box/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"duration": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"distance": func(d logic.Distance) string {
		if cm, ok := d.Cm(); ok {
			return fmt.Sprintf("%.1f cm", cm)
		}
		return "invalid"
	},
	"yesno": func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	},
	"lower": func(s logic.SystemState) string {
		switch s {
		case logic.StateProcessing:
			return "processing"
		case logic.StateWaiting:
			return "waiting"
		case logic.StateAbnormal:
			return "abnormal"
		default:
			return "normal"
		}
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Smart Box {{.Config.BoxID}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.normal { color: green; font-weight: bold; }
.processing { color: blue; font-weight: bold; }
.waiting { color: #ff7800; font-weight: bold; }
.abnormal { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Smart Box {{.Config.BoxID}}</h1>

<h2>State</h2>
<table>
<tr><th>State</th><td id="state" class="{{lower .State}}">{{.State}} ({{.State.Code}})</td></tr>
<tr><th>Rule</th><td>{{if .Last.Rule}}{{.Last.Rule}}{{else}}-{{end}}</td></tr>
</table>

{{if .Ticked}}<h2>Sensors</h2>
<table>
<tr><th>Door</th><td>{{if .Last.Sample.DoorOpen}}open for {{duration .Last.DoorOpenFor}}{{else}}closed{{end}}</td></tr>
<tr><th>Button</th><td>{{if .Last.Sample.ButtonPressed}}pressed{{else}}released{{end}}</td></tr>
<tr><th>Light</th><td>{{.Last.Sample.LightValue}} ({{if .Last.Sample.CounterEmpty}}empty{{else}}item{{end}})</td></tr>
<tr><th>Distance</th><td>{{distance .Last.Sample.Distance}}</td></tr>
<tr><th>Hand in path</th><td>{{yesno .Last.Sample.HandInPath}}</td></tr>
</table>

<h2>Sessions</h2>
<table>
<tr><th>Item on counter</th><td>{{if .Last.Sessions.Item.Present}}{{duration .Last.ItemOnCounterFor}}{{else}}no{{end}}</td></tr>
<tr><th>Classification requested</th><td>{{yesno .Last.Sessions.Item.ClassificationRequested}}</td></tr>
<tr><th>Classification done</th><td>{{yesno .Last.Sessions.Item.ClassificationDone}}</td></tr>
<tr><th>Pickup wait</th><td>{{if .Last.Sessions.Pickup.Armed}}{{duration .Last.PickupWaitFor}}{{else}}not armed{{end}}</td></tr>
</table>
{{end}}
<h2>Classification Feed</h2>
<table>
<tr><th>URL</th><td>{{.Config.FeedURL}}</td></tr>
<tr><th>Baselined</th><td>{{yesno .Feed.Baselined}}</td></tr>
<tr><th>Last result</th><td>{{if .Feed.LastID}}{{.Feed.LastID}} {{.Feed.LastLabel}}{{else}}-{{end}}</td></tr>
<tr><th>Events</th><td>{{.Feed.Events}}</td></tr>
{{if .Feed.LastError}}<tr><th>Last error</th><td class="disconnected">{{.Feed.LastError}}</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>State Counts</h2>
<table>
<tr><th>NORMAL</th><td>{{.Counts.Normal}}</td></tr>
<tr><th>PROCESSING</th><td>{{.Counts.Processing}}</td></tr>
<tr><th>WAITING</th><td>{{.Counts.Waiting}}</td></tr>
<tr><th>ABNORMAL</th><td>{{.Counts.Abnormal}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{duration .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Boot</th><td>{{.BootID}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has State() and Uptime() methods; the template wants fields.
	data := struct {
		status.Snapshot
		State  logic.SystemState
		Uptime time.Duration
	}{
		Snapshot: snap,
		State:    snap.State(),
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
