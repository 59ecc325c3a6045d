package server

import (
	"encoding/json"
	"html/template"
	"mime"
	"net/http"
	"path"
	"sort"
	"strings"

	"github.com/conneroisu/hotplate/internal/errors"
	"github.com/conneroisu/hotplate/internal/vars"
)

// liveReloadScript reconnects after the server restarts and reloads the page
// on every successful recompile.
const liveReloadScript = `<script>
(function () {
  function connect() {
    var proto = location.protocol === "https:" ? "wss:" : "ws:";
    var ws = new WebSocket(proto + "//" + location.host + "/_livereload");
    ws.onmessage = function (e) {
      var msg = JSON.parse(e.data);
      if (msg.type === "reload") { location.reload(); }
      if (msg.type === "error") { console.error("hotplate: " + msg.error); }
    };
    ws.onclose = function () { setTimeout(connect, 1000); };
  }
  connect();
})();
</script>
`

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>hotplate</title>
    <style>
        body { font-family: system-ui, -apple-system, sans-serif; margin: 0; padding: 20px; background: #f5f5f5; }
        .container { max-width: 960px; margin: 0 auto; background: white; padding: 20px; border-radius: 8px; }
        h1 { color: #333; border-bottom: 2px solid #007acc; padding-bottom: 10px; }
        li { padding: 4px 0; }
        a { color: #007acc; text-decoration: none; }
        .generation { color: #666; font-size: 12px; }
    </style>
</head>
<body>
<div class="container">
    <h1>Templates</h1>
    <p class="generation">generation {{ .Generation }}</p>
    <ul>
    {{- range .Templates }}
        <li><a href="/{{ . }}">{{ . }}</a></li>
    {{- else }}
        <li>No templates found.</li>
    {{- end }}
    </ul>
</div>
</body>
</html>
`))

type templatesResponse struct {
	Generation uint64   `json:"generation"`
	Templates  []string `json:"templates"`
}

type healthResponse struct {
	Status     string `json:"status"`
	Generation uint64 `json:"generation"`
	Templates  int    `json:"templates"`
	Clients    int    `json:"clients"`
}

func (s *PreviewServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, healthResponse{
		Status:     "ok",
		Generation: s.templates.Generation(),
		Templates:  len(s.templates.Names()),
		Clients:    s.hub.count(),
	})
}

func (s *PreviewServer) handleTemplates(w http.ResponseWriter, r *http.Request) {
	names := s.templates.Names()
	if names == nil {
		names = []string{}
	}
	s.writeJSON(w, r, http.StatusOK, templatesResponse{
		Generation: s.templates.Generation(),
		Templates:  names,
	})
}

// handleIndex renders index.html when there is one and a template listing
// otherwise.
func (s *PreviewServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates.Has("index.html") {
		s.render(w, r, "index.html")
		return
	}

	var b strings.Builder
	err := indexTemplate.Execute(&b, templatesResponse{
		Generation: s.templates.Generation(),
		Templates:  s.templates.Names(),
	})
	if err != nil {
		s.logger.Error(r.Context(), err, "failed to render index")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeHTML(w, http.StatusOK, b.String())
}

func (s *PreviewServer) handleRender(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, r.PathValue("name"))
}

func (s *PreviewServer) render(w http.ResponseWriter, r *http.Request, name string) {
	ctx, err := queryContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	out, err := s.templates.Render(name, ctx)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.CodeOf(err) == errors.ErrCodeTemplateNotFound {
			status = http.StatusNotFound
		} else {
			s.logger.Warn(r.Context(), err, "render failed", "template", name)
		}
		http.Error(w, err.Error(), status)
		return
	}

	contentType := contentTypeFor(name)
	if strings.HasPrefix(contentType, "text/html") {
		s.writeHTML(w, http.StatusOK, out)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out))
}

func (s *PreviewServer) writeHTML(w http.ResponseWriter, status int, body string) {
	if s.config.LiveReload {
		body = injectScript(body, liveReloadScript)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (s *PreviewServer) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error(r.Context(), err, "failed to encode response")
	}
}

// queryContext builds a render context from the query string. Keys may be
// dotted and values are typed the same way as --set assignments. Repeated
// keys keep the last value.
func queryContext(r *http.Request) (map[string]any, error) {
	query := r.URL.Query()
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	assignments := make([]string, 0, len(keys))
	for _, k := range keys {
		values := query[k]
		assignments = append(assignments, k+"="+values[len(values)-1])
	}
	return vars.ParseAssignments(assignments)
}

func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "text/plain; charset=utf-8"
}

// injectScript inserts script before the last </body>, or appends it when
// the document has none.
func injectScript(body, script string) string {
	const tag = "</body>"
	for i := len(body) - len(tag); i >= 0; i-- {
		if strings.EqualFold(body[i:i+len(tag)], tag) {
			return body[:i] + script + body[i:]
		}
	}
	return body + script
}
