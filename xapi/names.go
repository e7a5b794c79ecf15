package xapi

import (
	"regexp"
	"strings"
)

// Camelcase converts an underscore_separated schema name into
// UpperCamelCase, matching apihelper.py's camelcase() so generated Go
// identifiers read the way the device's own documentation names them.
func Camelcase(text string) string {
	parts := strings.Split(text, "_")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

var htmlTag = regexp.MustCompile(`<.*?>`)

func stripHTML(description string) string {
	return strings.TrimSpace(htmlTag.ReplaceAllString(description, ""))
}

// Doc renders a human-readable description of a command, in the shape of
// apihelper.py's api_cmd_to_ascii: a stripped description followed by an
// argument list and, for commands, a return-value list.
func (c *Command) Doc() string {
	desc := stripHTML(c.Description)
	if desc == "" {
		desc = "Send command " + c.Name + "."
	}
	var b strings.Builder
	b.WriteString(desc)
	b.WriteString("\n\nArguments:")
	if len(c.Params) == 0 {
		b.WriteString(" (none)")
	}
	for _, p := range c.Params {
		b.WriteString("\n\t- ")
		b.WriteString(p.Name)
		b.WriteString(": ")
		b.WriteString(stripHTML(p.Description))
	}
	if len(c.Returns) > 0 {
		b.WriteString("\n\nReturn values:")
		for _, r := range c.Returns {
			b.WriteString("\n\t- ")
			b.WriteString(r.Name)
			if d := stripHTML(r.Description); d != "" {
				b.WriteString(": ")
				b.WriteString(d)
			}
		}
	}
	return b.String()
}

// Doc renders a human-readable description of an event, mirroring
// Command.Doc.
func (e *Event) Doc() string {
	desc := stripHTML(e.Description)
	if desc == "" {
		desc = "Event " + e.Name + "."
	}
	var b strings.Builder
	b.WriteString(desc)
	b.WriteString("\n\nArguments:")
	if len(e.Params) == 0 {
		b.WriteString(" (none)")
	}
	for _, p := range e.Params {
		b.WriteString("\n\t- ")
		b.WriteString(p.Name)
		b.WriteString(": ")
		b.WriteString(stripHTML(p.Description))
	}
	return b.String()
}
