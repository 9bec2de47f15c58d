package email

import (
	"bytes"
	"embed"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	htmlTpl = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/*.html.tmpl"))
	textTpl = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/*.txt.tmpl"))
)

// Rendered es un mensaje listo para Sender.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

// render ejecuta "<name>.html.tmpl" y "<name>.txt.tmpl". La primera línea
// del texto plano es el asunto ("Subject: ...").
func render(name string, data any) (Rendered, error) {
	var h, t bytes.Buffer
	if err := htmlTpl.ExecuteTemplate(&h, name+".html.tmpl", data); err != nil {
		return Rendered{}, err
	}
	if err := textTpl.ExecuteTemplate(&t, name+".txt.tmpl", data); err != nil {
		return Rendered{}, err
	}
	text := t.String()
	var subject string
	if first, rest, ok := strings.Cut(text, "\n"); ok && strings.HasPrefix(first, "Subject: ") {
		subject = strings.TrimPrefix(first, "Subject: ")
		text = strings.TrimLeft(rest, "\n")
	}
	return Rendered{Subject: subject, HTML: h.String(), Text: text}, nil
}
