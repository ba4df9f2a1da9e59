package conformance

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Summary returns a one-line count of the run with numbers grouped for the
// given locale, e.g. "1,204 cases".
func (r *Report) Summary(tag language.Tag) string {
	tests, cases, failed := r.Counts()
	p := message.NewPrinter(tag)

	status := "passed"
	if failed > 0 {
		status = "FAILED"
	}
	summary := p.Sprintf("%s: %d tests, %d cases, %d failed", status, tests, cases, failed)
	if r.Stopped {
		summary += " (stopped at first failure)"
	}
	return summary
}

// ParseLocale maps a locale string such as "en-GB" or "de" to a language tag,
// falling back to English.
func ParseLocale(locale string) language.Tag {
	if locale == "" {
		return language.English
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return language.English
	}
	return tag
}

// Markdown renders the report as a Markdown document with GFM tables.
func (r *Report) Markdown() string {
	var sb strings.Builder

	sb.WriteString("# Conformance report\n\n")
	if r.Dir != "" {
		fmt.Fprintf(&sb, "Suite: `%s`\n\n", r.Dir)
	}

	sb.WriteString("| Test | Cases | Result | Time |\n")
	sb.WriteString("|---|---:|---|---:|\n")
	for _, t := range r.Tests {
		result := "pass"
		if !t.Passed() {
			result = "**fail**"
		}
		fmt.Fprintf(&sb, "| %s | %d | %s | %s |\n", escapeCell(t.Name), len(t.Cases), result, t.Duration.Round(time.Microsecond))
	}

	for _, t := range r.Tests {
		if t.Passed() {
			continue
		}
		fmt.Fprintf(&sb, "\n## %s\n\n", t.Name)
		if t.Err != nil {
			fmt.Fprintf(&sb, "Could not run: `%s`\n", escapeCell(t.Err.Error()))
			continue
		}
		for _, c := range t.Cases {
			if c.Passed {
				continue
			}
			fmt.Fprintf(&sb, "### Case %d\n\n", c.Index)
			if c.Err != nil {
				fmt.Fprintf(&sb, "Runtime error: `%s`\n\n", escapeCell(c.Err.Error()))
			}
			sb.WriteString("| Actual | | Expected |\n")
			sb.WriteString("|---:|:---:|:---|\n")
			n := max(len(c.Actual), len(c.Expected))
			for i := range n {
				var a, e string
				if i < len(c.Actual) {
					a = c.Actual[i]
				}
				if i < len(c.Expected) {
					e = c.Expected[i]
				}
				sep := ""
				if a != e {
					sep = "≠"
				}
				fmt.Fprintf(&sb, "| %s | %s | %s |\n", escapeCell(a), sep, escapeCell(e))
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// WriteHTMLReport renders the Markdown report to HTML.
func (r *Report) WriteHTMLReport(w io.Writer) error {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))

	var body bytes.Buffer
	if err := md.Convert([]byte(r.Markdown()), &body); err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}

	if _, err := io.WriteString(w, "<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>Conformance report</title></head>\n<body>\n"); err != nil {
		return err
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		return err
	}
	_, err := io.WriteString(w, "</body>\n</html>\n")
	return err
}
