package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var pageNames = []string{
	"home", "feed", "detail", "chat", "new",
	"filter", "saved", "profile", "profile_edit", "login",
	"callback",
}

var templateFuncs = template.FuncMap{
	"reltime": relTime,
}

func parseTemplates() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.New("base.html").Funcs(templateFuncs).
			ParseFS(templateFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse page %s: %w", name, err)
		}
		pages[name] = tmpl
	}
	return pages, nil
}

// relTime renders a timestamp relative to now, e.g. "in 2d" or "3h ago".
func relTime(t time.Time) string {
	d := time.Until(t)
	past := d < 0
	if past {
		d = -d
	}
	var span string
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		span = fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		span = fmt.Sprintf("%dh", int(d.Hours()))
	default:
		span = fmt.Sprintf("%dd", int(d.Hours()/24))
	}
	if past {
		return span + " ago"
	}
	return "in " + span
}

func (h *Handler) render(w io.Writer, page string, data interface{}) {
	tmpl, ok := h.templates[page]
	if !ok {
		h.logger.Error().Str("page", page).Msg("unknown template")
		return
	}
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		h.logger.Error().Err(err).Str("page", page).Msg("template render failed")
	}
}
