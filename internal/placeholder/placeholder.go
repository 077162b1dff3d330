// Package placeholder подставляет значения в шаблоны вида {{key}}.
package placeholder

import (
	"regexp"
	"strings"
)

var pattern = regexp.MustCompile(`{{\s*([a-zA-Z0-9_]+)\s*}}`)

// Fill заменяет каждый {{key}} на values[key]. Неизвестные ключи остаются как есть.
func Fill(tmpl string, values map[string]string) string {
	return pattern.ReplaceAllStringFunc(tmpl, func(m string) string {
		key := strings.TrimSpace(m[2 : len(m)-2])
		if v, ok := values[key]; ok {
			return v
		}
		return m
	})
}
