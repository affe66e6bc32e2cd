// Package template renders query sources with user variables before they
// are parsed, so one query file can serve several sites or environments.
package template

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/template"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// FuncMap returns the functions available inside query templates.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"uuidv4": generateUUIDv4,
		"uuid":   generateUUIDv4,

		"now":       timeNow,
		"timestamp": timeUnix,
		"date":      timeFormat,

		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"title": titleCase,
		"trim":  strings.TrimSpace,

		"quote": strconv.Quote,
		"json":  toJSON,
		"env":   os.Getenv,

		"base64": base64Encode,
	}
}

func generateUUIDv4() string {
	return uuid.New().String()
}

func timeNow() string {
	return time.Now().Format(time.RFC3339)
}

func timeUnix() string {
	return strconv.FormatInt(time.Now().Unix(), 10)
}

// timeFormat formats the current time with a Go layout string.
func timeFormat(layout string) string {
	return time.Now().Format(layout)
}

// titleCase uses proper Unicode word boundaries.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

func toJSON(v any) (string, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("json: %w", err)
	}
	return string(encoded), nil
}

func base64Encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// NewTemplate returns a template that fails on missing variables.
func NewTemplate(name string) *template.Template {
	return template.New(name).Option("missingkey=error").Funcs(FuncMap())
}

// Render executes source with variables. The name appears in errors.
func Render(name, source string, variables map[string]any) (string, error) {
	if source == "" || !strings.Contains(source, "{{") {
		return source, nil
	}

	tmpl, err := NewTemplate(name).Parse(source)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", name, err)
	}

	data := variables
	if data == nil {
		data = map[string]any{}
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}

	return buf.String(), nil
}
