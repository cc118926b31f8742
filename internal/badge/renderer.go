// Package badge renders the injected price-comparison badge as an HTML
// fragment.
package badge

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"strings"
	"text/template"

	sprig "github.com/Masterminds/sprig/v3"

	"github.com/vkarpovich/shopglance/internal/marketplace"
)

// Class marks the badge root element. Injection idempotence checks for it, so
// it must stay in every badge template.
const Class = "shopglance-price-badge"

// DefaultTemplate is the built-in badge fragment: a price line, an optional
// offer-count line, and a link to the marketplace search.
const DefaultTemplate = `<div class="` + Class + `" style="display:block;margin:8px 0;padding:8px 12px;background:linear-gradient(135deg,#4CAF50 0%,#45a049 100%);border-radius:6px;box-shadow:0 2px 6px rgba(0,0,0,0.15);">
<a href="{{ .URL }}" target="_blank" rel="noopener" style="color:white;text-decoration:none;font-size:13px;font-weight:600;">
<div>Shop.by: {{ .Price }}</div>
{{- if .ShopCount }}
<div style="font-size:11px;opacity:0.85;margin-top:2px;">{{ .ShopCount | trim }}</div>
{{- end }}
</a>
</div>`

// Renderer compiles the badge template once and executes it per offer.
// Rendered templates are safe for concurrent use.
type Renderer struct {
	tmpl *template.Template
}

// New compiles the badge template. An empty templateFile selects the built-in
// fragment; otherwise the file contents are used and must carry the badge
// class so repeated injection stays detectable.
func New(templateFile string) (*Renderer, error) {
	source := DefaultTemplate
	if templateFile != "" {
		contents, err := os.ReadFile(templateFile)
		if err != nil {
			return nil, fmt.Errorf("badge: read template %q: %w", templateFile, err)
		}
		source = string(contents)
		if !strings.Contains(source, Class) {
			return nil, fmt.Errorf("badge: template %q must contain the %q class", templateFile, Class)
		}
	}

	funcs := sprig.TxtFuncMap()
	// Badge templates render into untrusted host pages; no reason to let
	// them read the process environment or the filesystem.
	for _, name := range []string{"env", "expandenv", "readDir", "mustReadDir", "readFile", "mustReadFile"} {
		delete(funcs, name)
	}

	tmpl, err := template.New("badge").Funcs(funcs).Option("missingkey=zero").Parse(source)
	if err != nil {
		return nil, fmt.Errorf("badge: compile template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

type badgeData struct {
	Price     string
	URL       string
	ShopCount string
}

// Render produces the badge fragment for one offer. Offer fields are HTML-
// escaped before templating since they originate from scraped text.
func (r *Renderer) Render(offer marketplace.Offer) (string, error) {
	data := badgeData{
		Price:     html.EscapeString(offer.Price),
		URL:       html.EscapeString(offer.URL),
		ShopCount: html.EscapeString(offer.ShopCount),
	}
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("badge: render: %w", err)
	}
	return buf.String(), nil
}
