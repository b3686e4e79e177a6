// Package web serves the landing page.
package web

import (
	"bytes"
	_ "embed"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/raaihank/pdf-redactor/internal/privacy"
)

//go:embed content/landing.md
var landing string

const (
	pageHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>PDF Redactor</title>
</head>
<body>
`
	pageTail = "</body>\n</html>\n"
)

var (
	renderOnce sync.Once
	rendered   []byte
	renderErr  error
)

// Render converts the landing page to sanitised HTML. The rule table lists rules
// in registry order.
func Render(rules []privacy.Rule) ([]byte, error) {
	source := strings.Replace(landing, "{{RULES}}", ruleTable(rules), 1)

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		return nil, fmt.Errorf("failed to render landing page: %w", err)
	}

	body := bluemonday.UGCPolicy().SanitizeBytes(buf.Bytes())

	out := make([]byte, 0, len(pageHead)+len(body)+len(pageTail))
	out = append(out, pageHead...)
	out = append(out, body...)
	out = append(out, pageTail...)
	return out, nil
}

func ruleTable(rules []privacy.Rule) string {
	var b strings.Builder
	b.WriteString("| Type | Plan |\n|------|------|\n")
	for _, r := range rules {
		fmt.Fprintf(&b, "| %s | %s |\n", r.Name, r.Tier)
	}
	return b.String()
}

// ServeLanding serves the landing page
func ServeLanding(w http.ResponseWriter, r *http.Request) {
	renderOnce.Do(func() {
		rendered, renderErr = Render(privacy.AllRules(true))
	})
	if renderErr != nil {
		http.Error(w, "Landing page unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Write(rendered)
}
