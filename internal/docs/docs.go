package docs

import (
	_ "embed"
	"net/http"

	"github.com/go-chi/chi/v5"
)

//go:embed openapi.yaml
var specYAML []byte

// docsCSP loosens the API-wide policy for the reference page, which pulls its
// renderer from jsDelivr.
const docsCSP = "default-src 'self'; " +
	"script-src 'self' https://cdn.jsdelivr.net 'unsafe-inline'; " +
	"style-src 'self' https://cdn.jsdelivr.net 'unsafe-inline'; " +
	"font-src 'self' https://cdn.jsdelivr.net data:; " +
	"img-src 'self' data: https:; connect-src 'self'; frame-ancestors 'none';"

// Routes serves the reference page at / and the raw document at /openapi.yaml.
func Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", HandleDocs)
	r.Get("/openapi.yaml", HandleSpec)
	return r
}

func HandleSpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write(specYAML)
}

func HandleDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Security-Policy", docsCSP)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(docsHTML))
}

const docsHTML = `<!DOCTYPE html>
<html><head>
  <title>vidforge API Reference</title>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
</head><body>
  <script id="api-reference" data-url="/api/docs/openapi.yaml"></script>
  <script src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"></script>
</body></html>`
