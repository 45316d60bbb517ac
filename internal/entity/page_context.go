package entity

import "strings"

// PageContext is what the client can tell the backend about the page the user is on.
type PageContext struct {
	URL         string   `json:"url"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Headings    []string `json:"headings,omitempty"`
	Text        string   `json:"text,omitempty"`
}

// Summary renders the context as the plain text sent with a question.
func (p *PageContext) Summary() string {
	if p == nil {
		return ""
	}
	var b strings.Builder
	if p.Title != "" {
		b.WriteString("Title: ")
		b.WriteString(p.Title)
		b.WriteString("\n")
	}
	if p.Description != "" {
		b.WriteString("Description: ")
		b.WriteString(p.Description)
		b.WriteString("\n")
	}
	if len(p.Headings) > 0 {
		b.WriteString("Headings: ")
		b.WriteString(strings.Join(p.Headings, " | "))
		b.WriteString("\n")
	}
	if p.Text != "" {
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String())
}
