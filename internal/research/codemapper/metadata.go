package codemapper

import (
	"fmt"
	"sort"
	"strings"
)

// deriveHeading turns a PoI bullet into a short section heading: strip
// leading markdown emphasis, then cut at the first colon or dash
// separator.
func deriveHeading(point string) string {
	text := strings.TrimSpace(point)

	if strings.HasPrefix(text, "**") {
		if end := strings.Index(text[2:], "**"); end != -1 {
			text = strings.TrimSpace(text[2 : 2+end])
		}
	}

	for _, sep := range []string{":", " - ", " — "} {
		if idx := strings.Index(text, sep); idx != -1 {
			text = strings.TrimSpace(text[:idx])
			break
		}
	}

	if text == "" {
		return "Untitled topic"
	}
	return text
}

// slugify converts a heading into a filesystem-friendly, kebab-case slug
// capped at 60 characters.
func slugify(heading string) string {
	lower := strings.ToLower(heading)
	var b strings.Builder
	lastDash := false
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > 60 {
		slug = strings.Trim(slug[:60], "-")
	}
	if slug == "" {
		slug = "topic"
	}
	return slug
}

// isEmptyResearchResult reports whether a deep-research answer carries no
// usable content, matching the same "no relevant code context" sentinel
// the research orchestrator emits when nothing was found.
func isEmptyResearchResult(answer string) bool {
	trimmed := strings.TrimSpace(answer)
	if trimmed == "" {
		return true
	}
	firstLine := trimmed
	if idx := strings.IndexByte(trimmed, '\n'); idx != -1 {
		firstLine = trimmed[:idx]
	}
	return strings.HasPrefix(strings.TrimSpace(firstLine), "No relevant code context found for:")
}

// placeholderSection renders a "…failed…" Markdown section for a PoI
// that never produced usable content, keeping the PoI index dense so the
// final document always has exactly n topic sections.
func placeholderSection(index, total int, poi POI, cause error) string {
	heading := deriveHeading(poi.Text)
	var b strings.Builder
	fmt.Fprintf(&b, "# %s (failed)\n\n", heading)
	b.WriteString("This point of interest failed to generate content after a retry.\n\n")
	fmt.Fprintf(&b, "- Point of interest (%d/%d): %s\n", index, total, poi.Text)
	if cause != nil {
		fmt.Fprintf(&b, "- Error: %s\n", cause.Error())
	}
	return b.String()
}

// renderMetadataHeader renders the HTML-comment YAML metadata block every
// emitted Markdown document is prefixed with.
func renderMetadataHeader(meta Metadata) string {
	var b strings.Builder
	b.WriteString("<!--\n")
	b.WriteString("agent_doc_metadata:\n")
	if meta.CreatedFromSHA != "" && meta.CreatedFromSHA != "NO_GIT_HEAD" {
		fmt.Fprintf(&b, "  created_from_sha: %s\n", meta.CreatedFromSHA)
	}
	fmt.Fprintf(&b, "  generated_at: %s\n", meta.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z07:00"))
	writeStringMapBlock(&b, "  llm_config", meta.LLMConfig)
	writeStringMapBlock(&b, "  generation_stats", meta.GenerationStats)
	b.WriteString("-->\n\n")
	return b.String()
}

func writeStringMapBlock(b *strings.Builder, key string, m map[string]string) {
	if len(m) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", key)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "  %s: %s\n", k, m[k])
	}
}
