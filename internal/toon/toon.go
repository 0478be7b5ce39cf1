// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/phobologic/vamdeps/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts a dependency Report into TOON format.
func Encode(rm *model.Report) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("name: %s", encodeValue(rm.Name)))
	parts = append(parts, fmt.Sprintf("root: %s", encodeValue(rm.Root)))

	var pkgRows [][]string
	for i := range rm.Packages {
		e := &rm.Packages[i]
		pkgRows = append(pkgRows, []string{
			e.Package,
			strings.Join(e.Dependencies, " "),
			strings.Join(e.FreeDependencies, " "),
		})
	}
	parts = append(parts, formatTabular("packages", []string{"package", "dependencies", "free_dependencies"}, pkgRows))

	var freeRows [][]string
	for i := range rm.Free {
		e := &rm.Free[i]
		freeRows = append(freeRows, []string{
			e.File,
			strings.Join(e.Dependencies, " "),
			strings.Join(e.FreeDependencies, " "),
		})
	}
	parts = append(parts, formatTabular("free", []string{"file", "dependencies", "free_dependencies"}, freeRows))

	if len(rm.Unresolved) > 0 {
		var rows [][]string
		for i := range rm.Unresolved {
			u := &rm.Unresolved[i]
			rows = append(rows, []string{u.Owner, u.Location, u.Document})
		}
		parts = append(parts, formatTabular("unresolved", []string{"owner", "location", "document"}, rows))
	}

	return strings.Join(parts, "\n")
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
