package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/cw-keyer/internal/mqtt"
	"github.com/sweeney/cw-keyer/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
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
	"orUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	"lit": func(on bool) string {
		if on {
			return "on"
		}
		return "off"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>CW Keyer</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.panel { font-size: 2em; text-align: center; border: 2px solid #333; border-radius: 8px; padding: 0.4em; margin: 1em 0; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>CW Keyer{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<div id="panel" class="panel">{{.Keyer.Display}}</div>

<h2>Keyer</h2>
<table>
<tr><th>Mode</th><td id="mode">{{orUnknown (printf "%s" .Keyer.Mode)}}</td></tr>
<tr><th>Speed</th><td><span id="wpm">{{.Keyer.WPM}}</span> WPM ({{.Keyer.Unit.Milliseconds}}ms unit)</td></tr>
<tr><th>Scheduler</th><td>{{orUnknown (printf "%s" .Keyer.Phase)}}</td></tr>
<tr><th>Tone</th><td class="{{lit .Keyer.Tone}}">{{lit .Keyer.Tone}}</td></tr>
<tr><th>Paddle LED</th><td class="{{lit .Keyer.Indicators.Paddle}}">{{lit .Keyer.Indicators.Paddle}}</td></tr>
<tr><th>Straight LED</th><td class="{{lit .Keyer.Indicators.Straight}}">{{lit .Keyer.Indicators.Straight}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Dots</th><td>{{.Counts.Dots}}</td></tr>
<tr><th>Dashes</th><td>{{.Counts.Dashes}}</td></tr>
<tr><th>Straight keyings</th><td>{{.Counts.Keyings}}</td></tr>
<tr><th>Mode changes</th><td>{{.Counts.ModeChanges}}</td></tr>
<tr><th>Saves</th><td>{{.Counts.Saves}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>mode {{.Config.ModeDebounceMs}}ms, save {{.Config.SaveDebounceMs}}ms</td></tr>
<tr><th>Encoder</th><td>{{.Config.Acceleration}}, quiet {{.Config.EncoderQuietMs}}ms</td></tr>
<tr><th>Auto-repeat</th><td>{{if .Config.AutoRepeat}}on{{else}}off{{end}}</td></tr>
<tr><th>Tone</th><td>{{if eq .Config.ToneHz 0}}active buzzer{{else}}{{.Config.ToneHz}} Hz{{end}}</td></tr>
<tr><th>Display</th><td>{{.Config.Display}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
{{if .Config.WSBroker}}
<script src="https://unpkg.com/mqtt@5/dist/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "{{.Topic}}";
  var dot = document.getElementById("live-dot");
  var modeEl = document.getElementById("mode");
  var wpmEl = document.getElementById("wpm");
  var panelEl = document.getElementById("panel");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe(topic);
  });

  client.on("reconnect", function() {
    setDot("pending", "reconnecting");
  });

  client.on("offline", function() {
    setDot("err", "offline");
  });

  client.on("error", function() {
    setDot("err", "error");
  });

  client.on("message", function(t, payload) {
    try {
      var msg = JSON.parse(payload.toString());
      if (msg.keyer) {
        modeEl.textContent = msg.keyer.mode;
        wpmEl.textContent = msg.keyer.wpm;
        panelEl.textContent = msg.keyer.event === "WPM_SAVED" ? "Saved" : msg.keyer.wpm;
      }
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Topic  string
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Topic:    mqtt.Topic,
	}
	indexTmpl.Execute(w, data)
}
