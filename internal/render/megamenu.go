package render

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"

	"storefront/menu/internal/domain"
)

const megaMenuTemplate = `<nav class="mega-menu">
{{- range . }}
<section class="mega-menu__parent" data-parent="{{ .Parent }}">
<h3 class="mega-menu__title">{{ .Parent }}</h3>
<div class="grid grid-cols-{{ len .Columns }} gap-6">
{{- range .Columns }}
<ul class="mega-menu__column">
{{- range . }}
<li><a href="{{ link . }}" class="hover:underline">{{ .Name }}</a></li>
{{- end }}
</ul>
{{- end }}
</div>
</section>
{{- end }}
</nav>
`

var megaMenu = template.Must(template.New("mega-menu").
	Funcs(template.FuncMap{"link": Link}).
	Parse(megaMenuTemplate))

// Link is the storefront route of a subcategory
func Link(s domain.Subcategory) string {
	return "/category/" + url.PathEscape(s.RouteKey())
}

// MegaMenu renders the hover menu fragment for the given parents.
// Parents without columns render no section.
func MegaMenu(parents []domain.ParentColumns) ([]byte, error) {
	visible := make([]domain.ParentColumns, 0, len(parents))
	for _, p := range parents {
		if len(p.Columns) > 0 {
			visible = append(visible, p)
		}
	}

	var buf bytes.Buffer
	if err := megaMenu.Execute(&buf, visible); err != nil {
		return nil, fmt.Errorf("failed to render mega menu: %w", err)
	}
	return buf.Bytes(), nil
}
