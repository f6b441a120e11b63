package notifier

import (
	"bytes"
	"embed"
	"strings"
	"text/template"

	"github.com/logwarden/logwarden/internal/models"
)

//go:embed templates/*
var templateFS embed.FS

// Templates holds parsed email templates.
type Templates struct {
	html  *template.Template
	plain *template.Template
}

// TemplateData contains data for template rendering.
type TemplateData struct {
	Title          string
	IncidentID     string
	Source         string
	Severity       string
	SeverityColor  string
	Findings       []string
	MessageExcerpt string
	EvidencePath   string
	Timestamp      string
	Body           string
}

// LoadTemplates loads embedded email templates.
func LoadTemplates() (*Templates, error) {
	funcs := template.FuncMap{
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"join":  strings.Join,
	}

	htmlTmpl, err := template.New("incident.html").Funcs(funcs).ParseFS(templateFS, "templates/incident.html")
	if err != nil {
		return nil, err
	}

	plainTmpl, err := template.New("incident.txt").Funcs(funcs).ParseFS(templateFS, "templates/incident.txt")
	if err != nil {
		return nil, err
	}

	return &Templates{
		html:  htmlTmpl,
		plain: plainTmpl,
	}, nil
}

// RenderHTML renders the HTML email body.
func (t *Templates) RenderHTML(data *TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := t.html.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderPlain renders the plain text email body.
func (t *Templates) RenderPlain(data *TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := t.plain.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// severityColor returns the color for a severity level.
func severityColor(severity models.Severity) string {
	switch severity {
	case models.SeverityCritical:
		return "#d32f2f" // red
	case models.SeverityHigh:
		return "#f57c00" // orange
	case models.SeverityMedium:
		return "#fbc02d" // yellow
	case models.SeverityLow:
		return "#388e3c" // green
	default:
		return "#757575" // gray
	}
}

// NotificationToTemplateData converts a notification to template data.
func NotificationToTemplateData(n *Notification) *TemplateData {
	data := &TemplateData{
		Title:         n.Title,
		Severity:      string(n.Severity),
		SeverityColor: severityColor(n.Severity),
		Body:          n.Body,
	}

	if inc := n.Incident; inc != nil {
		data.IncidentID = inc.ID
		data.Source = inc.LogSource
		data.MessageExcerpt = inc.MessageExcerpt
		data.EvidencePath = inc.EvidencePath
		data.Timestamp = inc.CreatedAt.UTC().Format("2006-01-02 15:04:05 MST")
		data.Findings = make([]string, len(inc.Findings))
		for i, f := range inc.Findings {
			data.Findings[i] = string(f)
		}
	}

	return data
}
