package discharge

import "strings"

// SectionType discriminates the two kinds of legacy sections.
type SectionType string

const (
	SectionParagraph SectionType = "paragraph"
	SectionTable     SectionType = "table"
)

// Section is one reconstructed block of an older free-form summary. A
// paragraph carries Content; a table carries Headers and Rows.
type Section struct {
	Type    SectionType `json:"type"`
	Title   string      `json:"title,omitempty"`
	Content string      `json:"content,omitempty"`
	Headers []string    `json:"headers,omitempty"`
	Rows    [][]string  `json:"rows,omitempty"`
}

// ParseLegacyText reconstructs section and table structure from an older
// markdown-like summary so records that predate structured documents can
// still be displayed. The text is split on heading-marker lines; each
// heading's body is emitted as a pipe-delimited table when one is found,
// otherwise as a paragraph. Unheaded text before the first heading is
// handled the same way with no title. Pure and restartable.
func ParseLegacyText(raw string) []Section {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")

	var sections []Section
	title := ""
	var body []string

	flush := func() {
		section, ok := buildSection(title, body)
		if ok {
			sections = append(sections, section)
		}
		body = body[:0]
	}

	for _, line := range lines {
		if heading, ok := parseHeading(line); ok {
			flush()
			title = heading
			continue
		}
		body = append(body, line)
	}
	flush()

	return sections
}

// parseHeading recognizes a markdown heading marker of any depth.
func parseHeading(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimLeft(trimmed, "#")), true
}

// buildSection turns a heading body into a table section when the body
// contains a pipe-delimited table, otherwise into a paragraph. Empty
// bodies yield nothing.
func buildSection(title string, body []string) (Section, bool) {
	text := strings.TrimSpace(strings.Join(body, "\n"))
	if text == "" && title == "" {
		return Section{}, false
	}

	if headers, rows, ok := parseTable(body); ok {
		return Section{Type: SectionTable, Title: title, Headers: headers, Rows: rows}, true
	}
	if text == "" {
		return Section{}, false
	}
	return Section{Type: SectionParagraph, Title: title, Content: text}, true
}

// parseTable looks for a pipe-delimited table inside a body: a header row,
// a separator row of dashes, then zero or more body rows.
func parseTable(body []string) (headers []string, rows [][]string, ok bool) {
	start := -1
	for i, line := range body {
		if isTableRow(line) {
			start = i
			break
		}
	}
	if start < 0 || start+1 >= len(body) {
		return nil, nil, false
	}
	if !isSeparatorRow(body[start+1]) {
		return nil, nil, false
	}

	headers = splitTableRow(body[start])
	for _, line := range body[start+2:] {
		if !isTableRow(line) {
			break
		}
		rows = append(rows, splitTableRow(line))
	}
	return headers, rows, true
}

func isTableRow(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "|") && strings.Count(trimmed, "|") >= 2
}

// isSeparatorRow matches the dash row between a table header and its body,
// e.g. "|---|---|" or "| :--- | ---: |".
func isSeparatorRow(line string) bool {
	if !isTableRow(line) {
		return false
	}
	for _, cell := range splitTableRow(line) {
		stripped := strings.Trim(cell, ":- ")
		if stripped != "" || !strings.Contains(cell, "-") {
			return false
		}
	}
	return true
}

func splitTableRow(line string) []string {
	trimmed := strings.TrimSpace(line)
	trimmed = strings.TrimPrefix(trimmed, "|")
	trimmed = strings.TrimSuffix(trimmed, "|")

	parts := strings.Split(trimmed, "|")
	cells := make([]string, len(parts))
	for i, part := range parts {
		cells[i] = strings.TrimSpace(part)
	}
	return cells
}
