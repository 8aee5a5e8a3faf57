package template

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{\{v(\d+)\}\}`)

// Engine renders message bodies with positional placeholders ({{v1}},
// {{v2}}, ...) and resolves named templates from a registry.
type Engine struct {
	templates map[string]string
}

// NewEngine creates an engine over a registry mapping template IDs to bodies.
func NewEngine(templates map[string]string) *Engine {
	if templates == nil {
		templates = map[string]string{}
	}
	return &Engine{templates: templates}
}

// Render substitutes {{vN}} with vars[N-1]. Missing vars render as empty
// string so an otherwise-valid message is not blocked from sending.
func Render(body string, vars []string) string {
	return placeholderRe.ReplaceAllStringFunc(body, func(match string) string {
		idx, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(match, "{{v"), "}}"))
		if err != nil || idx < 1 || idx > len(vars) {
			return ""
		}
		return vars[idx-1]
	})
}

// RenderTemplate resolves a registered template body and renders it.
func (e *Engine) RenderTemplate(templateID string, vars []string) (string, error) {
	body, ok := e.templates[templateID]
	if !ok {
		return "", fmt.Errorf("template %q not registered", templateID)
	}
	return Render(body, vars), nil
}

// Has reports whether a template ID is registered.
func (e *Engine) Has(templateID string) bool {
	_, ok := e.templates[templateID]
	return ok
}
