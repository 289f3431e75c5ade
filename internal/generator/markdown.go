package generator

import (
	"fmt"
	"path"
	"sourcemind/internal/domain"
	"strings"
)

// fenceLanguages maps blueprint file extensions to code fence info strings
var fenceLanguages = map[string]string{ //nolint:gochecknoglobals // lookup table
	".go":   "go",
	".ts":   "typescript",
	".tsx":  "tsx",
	".js":   "javascript",
	".jsx":  "jsx",
	".py":   "python",
	".java": "java",
	".rs":   "rust",
	".rb":   "ruby",
	".json": "json",
	".yaml": "yaml",
	".yml":  "yaml",
	".toml": "toml",
	".xml":  "xml",
	".md":   "markdown",
	".sh":   "bash",
	".sql":  "sql",
	".html": "html",
	".css":  "css",
	".mod":  "go-module",
}

// RenderMarkdown renders the report as a Markdown document
func RenderMarkdown(report *Report, summary Summary) string {
	var b strings.Builder
	run := report.Run
	result := run.Result

	fmt.Fprintf(&b, "# %s\n\n", titleOf(report))

	if md := run.Metadata; md != nil {
		fmt.Fprintf(&b, "**Repository:** [%s](%s)  \n", md.FullName, md.HTMLURL)
		if md.Description != "" {
			fmt.Fprintf(&b, "**Description:** %s  \n", md.Description)
		}
		fmt.Fprintf(&b, "**Stars:** %d · **Forks:** %d", md.StargazersCount, md.ForksCount)
		if md.Language != "" {
			fmt.Fprintf(&b, " · **Primary language:** %s", md.Language)
		}
		b.WriteString("\n\n")
	}

	if result == nil {
		return b.String()
	}

	b.WriteString("## Overview\n\n")
	b.WriteString(result.Summary + "\n\n")
	if result.Purpose != "" {
		b.WriteString("**Purpose:** " + result.Purpose + "\n\n")
	}
	fmt.Fprintf(&b, "| Complexity | Innovation score | Security score | Risk level |\n")
	fmt.Fprintf(&b, "|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %s | %d/100 | %d/100 | %s |\n\n",
		result.Complexity, result.InnovationScore,
		result.SecurityAnalysis.Score, result.SecurityAnalysis.RiskLevel)

	if shares := run.Languages.Shares(); len(shares) > 0 {
		b.WriteString("## Languages\n\n")
		b.WriteString("| Language | Bytes | Share |\n|---|---:|---:|\n")
		for _, share := range shares {
			fmt.Fprintf(&b, "| %s | %d | %.1f%% |\n", escapeCell(share.Language), share.Bytes, share.Percent)
		}
		b.WriteString("\n")
	}

	writeList(&b, "Tech Stack", result.TechStack)
	writeList(&b, "Key Features", result.KeyFeatures)
	writeList(&b, "Use Cases", result.UseCases)

	if result.Installation != "" {
		b.WriteString("## Installation\n\n")
		b.WriteString(result.Installation + "\n\n")
	}

	b.WriteString("## Security\n\n")
	fmt.Fprintf(&b, "Risk level **%s**, score **%d/100**. ", result.SecurityAnalysis.RiskLevel, result.SecurityAnalysis.Score)
	fmt.Fprintf(&b, "%d vulnerabilities (%d critical, %d high, %d medium, %d low).\n\n",
		summary.Vulnerabilities,
		summary.VulnerabilitiesBySev[domain.SeverityCritical],
		summary.VulnerabilitiesBySev[domain.SeverityHigh],
		summary.VulnerabilitiesBySev[domain.SeverityMedium],
		summary.VulnerabilitiesBySev[domain.SeverityLow])
	if vulns := result.SecurityAnalysis.Vulnerabilities; len(vulns) > 0 {
		b.WriteString("| Severity | Type | Description |\n|---|---|---|\n")
		for _, v := range vulns {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", v.Severity, escapeCell(v.Type), escapeCell(v.Description))
		}
		b.WriteString("\n")
	}
	writeList(&b, "Compliance Checks", result.SecurityAnalysis.ComplianceCheck)

	if len(result.RepoStructure) > 0 {
		b.WriteString("## Structure\n\n")
		for _, module := range result.RepoStructure {
			fmt.Fprintf(&b, "### `%s` (%s)\n\n", module.Path, module.Type)
			if module.Description != "" {
				b.WriteString(module.Description + "\n\n")
			}
			if len(module.Dependencies) > 0 {
				b.WriteString("Depends on: " + codeJoin(module.Dependencies) + "\n\n")
			}
			for _, issue := range module.PotentialIssues {
				b.WriteString("- ⚠ " + issue + "\n")
			}
			if len(module.PotentialIssues) > 0 {
				b.WriteString("\n")
			}
		}
	}

	writeList(&b, "Suggested Improvements", result.SuggestedImprovements)

	if rows := allDependencies(report); len(rows) > 0 {
		b.WriteString("## Declared Dependencies\n\n")
		fmt.Fprintf(&b, "%d declared, %d internal, %d external.\n\n",
			summary.DeclaredDependencies, summary.InternalDependencies, summary.ExternalDependencies)
		b.WriteString("| Source | Name | Version | Ecosystem | Internal |\n|---|---|---|---|---|\n")
		for _, row := range rows {
			internal := "no"
			if row.Dependency.IsInternal {
				internal = "yes"
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
				escapeCell(row.Source), escapeCell(row.Dependency.Name), escapeCell(row.Dependency.Version),
				row.Dependency.Ecosystem, internal)
		}
		b.WriteString("\n")
	}

	if len(result.ProjectBlueprint) > 0 {
		b.WriteString("## Project Blueprint\n\n")
		b.WriteString("_Illustrative files generated by the model. They are not guaranteed to run._\n\n")
		for _, file := range result.ProjectBlueprint {
			fmt.Fprintf(&b, "### `%s`\n\n", file.Path)
			if file.Description != "" {
				b.WriteString(file.Description + "\n\n")
			}
			writeCodeBlock(&b, file.Path, file.Content)
		}
	}

	return b.String()
}

func writeList(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", heading)
	for _, item := range items {
		b.WriteString("- " + item + "\n")
	}
	b.WriteString("\n")
}

// writeCodeBlock fences content with more backticks than it contains in a row
func writeCodeBlock(b *strings.Builder, filePath, content string) {
	fence := strings.Repeat("`", max(3, longestBacktickRun(content)+1))
	lang := fenceLanguages[strings.ToLower(path.Ext(filePath))]

	b.WriteString(fence + lang + "\n")
	b.WriteString(content)
	if !strings.HasSuffix(content, "\n") {
		b.WriteString("\n")
	}
	b.WriteString(fence + "\n\n")
}

func longestBacktickRun(s string) int {
	longest, current := 0, 0
	for _, r := range s {
		if r == '`' {
			current++
			longest = max(longest, current)
			continue
		}
		current = 0
	}
	return longest
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r\n", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

func codeJoin(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = "`" + item + "`"
	}
	return strings.Join(quoted, ", ")
}
