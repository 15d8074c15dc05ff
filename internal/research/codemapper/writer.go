package codemapper

import (
	"fmt"
	"sort"
	"strings"
)

// Document is one named Markdown output file.
type Document struct {
	Name    string
	Content string
}

// Result is the code-mapper pipeline's complete output for one scope.
type Result struct {
	// Combined is the single Markdown document containing every PoI
	// section in order.
	Combined Document
	// Index is the per-scope table of contents linking to each topic
	// file.
	Index Document
	// Topics is one Markdown file per PoI, success or placeholder.
	Topics []Document
	// UnreferencedFiles lists scope files no PoI's research call ever
	// read, when scope membership was known; nil when it couldn't be
	// computed.
	UnreferencedFiles *Document
}

func modeLabel(mode POIMode) string {
	if mode == ModeOperational {
		return "ops"
	}
	return "arch"
}

// buildResult assembles every output document from the ordered PoI
// outcomes.
func buildResult(scopeLabel string, meta Metadata, outcomes []poiOutcome, referencedFiles map[string]bool, scopeFiles []string) Result {
	header := renderMetadataHeader(meta)

	topics := make([]Document, len(outcomes))
	var combined strings.Builder
	combined.WriteString(header)
	fmt.Fprintf(&combined, "# Code Map: %s\n\n", scopeLabel)

	var index strings.Builder
	index.WriteString(header)
	fmt.Fprintf(&index, "# Code Map Index: %s\n\n", scopeLabel)

	for _, o := range outcomes {
		heading := deriveHeading(o.poi.Text)
		slug := slugify(heading)
		name := fmt.Sprintf("%s_%s_topic_%02d_%s.md", scopeLabel, modeLabel(o.poi.Mode), o.index, slug)

		content := header + o.section
		topics[o.index-1] = Document{Name: name, Content: content}

		combined.WriteString(o.section)
		combined.WriteString("\n\n")

		status := ""
		if o.failed {
			status = " (failed)"
		}
		fmt.Fprintf(&index, "%d. [%s%s](%s)\n", o.index, heading, status, name)
	}

	result := Result{
		Combined: Document{Name: scopeLabel + "_code_mapper.md", Content: combined.String()},
		Index:    Document{Name: scopeLabel + "_code_mapper_index.md", Content: index.String()},
		Topics:   topics,
	}

	if scopeFiles != nil {
		result.UnreferencedFiles = buildUnreferencedFiles(scopeLabel, referencedFiles, scopeFiles)
	}
	return result
}

func buildUnreferencedFiles(scopeLabel string, referenced map[string]bool, scopeFiles []string) *Document {
	var unreferenced []string
	for _, p := range scopeFiles {
		if !referenced[p] {
			unreferenced = append(unreferenced, p)
		}
	}
	sort.Strings(unreferenced)

	var b strings.Builder
	for _, p := range unreferenced {
		b.WriteString(p)
		b.WriteByte('\n')
	}
	return &Document{Name: scopeLabel + "_scope_unreferenced_files.txt", Content: b.String()}
}
