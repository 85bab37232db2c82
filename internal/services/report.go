package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"trendscope/internal/models"
)

// BuildAnalysisPrompt assembles the analysis request from per-source
// collection summaries.
func BuildAnalysisPrompt(question, searchQuery string, results []models.SourceResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research question: %s\n", question)
	fmt.Fprintf(&b, "Search query used: %s\n\n", searchQuery)
	b.WriteString("Collected data by source:\n\n")

	for _, res := range results {
		if !res.Status.Usable() {
			continue
		}
		fmt.Fprintf(&b, "## %s (%d items", res.DisplayName, res.ItemCount)
		if res.Degraded {
			b.WriteString(", SAMPLE DATA - reduced confidence")
		}
		b.WriteString(")\n")
		for i, item := range res.Items {
			if i >= 15 {
				fmt.Fprintf(&b, "... and %d more items\n", res.ItemCount-i)
				break
			}
			line := item.Title
			if line == "" {
				line = item.Text
			} else if item.Text != "" {
				line += ": " + item.Text
			}
			if len(line) > 300 {
				line = line[:300] + "..."
			}
			fmt.Fprintf(&b, "- %s\n", line)
		}
		if len(res.Metrics) > 0 {
			fmt.Fprintf(&b, "Metrics: %s\n", formatMetrics(res.Metrics))
		}
		b.WriteString("\n")
	}

	b.WriteString("Analyze the data above. Identify the dominant themes, audience ")
	b.WriteString("signals, and notable contradictions. Treat sample data with ")
	b.WriteString("reduced confidence and say so where it affects a conclusion.")
	return b.String()
}

// BuildReportPrompt asks the provider for the final structured report.
// The section headings are load-bearing; ExtractSections parses them.
func BuildReportPrompt(question, analysis string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research question: %s\n\n", question)
	b.WriteString("Analysis:\n")
	b.WriteString(analysis)
	b.WriteString("\n\nWrite a market research report in markdown with exactly these sections:\n")
	b.WriteString("## EXECUTIVE SUMMARY\nTwo or three paragraphs.\n")
	b.WriteString("## KEY FINDINGS\nA bulleted list of the most important findings.\n")
	b.WriteString("## RECOMMENDATIONS\nA bulleted list of concrete, actionable recommendations.\n")
	return b.String()
}

// PlaceholderAnalysis produces a deterministic, clearly-labeled analysis
// from the collected metrics when no provider is reachable.
func PlaceholderAnalysis(question string, results []models.SourceResult) string {
	var b strings.Builder
	b.WriteString("[AUTOMATED SUMMARY - no analysis provider was available]\n\n")
	fmt.Fprintf(&b, "Research question: %s\n\n", question)

	total := 0
	for _, res := range results {
		if res.Status.Usable() {
			total += res.ItemCount
		}
	}
	fmt.Fprintf(&b, "Collected %d items across %d sources:\n", total, countUsable(results))
	for _, res := range results {
		fmt.Fprintf(&b, "- %s: %s, %d items", res.DisplayName, res.Status, res.ItemCount)
		if res.Degraded {
			b.WriteString(" (sample data)")
		}
		b.WriteString("\n")
	}
	b.WriteString("\nThis summary lists collection outcomes only. ")
	b.WriteString("Qualitative interpretation requires a configured analysis provider.")
	return b.String()
}

// BuildDisclaimer names which sources contributed and which did not, so
// consumers can judge the result's coverage.
func BuildDisclaimer(results []models.SourceResult) string {
	var ok, degraded, failed []string
	for _, res := range results {
		switch {
		case res.Status == models.SourceSuccess:
			ok = append(ok, res.DisplayName)
		case res.Status == models.SourcePartial:
			degraded = append(degraded, res.DisplayName)
		default:
			failed = append(failed, res.DisplayName)
		}
	}
	sort.Strings(ok)
	sort.Strings(degraded)
	sort.Strings(failed)

	var parts []string
	if len(ok) > 0 {
		parts = append(parts, "live data from "+strings.Join(ok, ", "))
	}
	if len(degraded) > 0 {
		parts = append(parts, "sample data (reduced confidence) from "+strings.Join(degraded, ", "))
	}
	if len(failed) > 0 {
		parts = append(parts, "no data from "+strings.Join(failed, ", "))
	}
	return "This report is based on " + strings.Join(parts, "; ") + "."
}

// BuildResult assembles the final ResearchResult from the barrier output
// and the analysis/report text.
func BuildResult(question, searchQuery string, results []models.SourceResult, analysis, provider string, degraded bool, report string, elapsed time.Duration) *models.ResearchResult {
	summary, findings, recommendations := ExtractSections(report)

	bySource := make(map[string]models.SourceResult, len(results))
	var failed []string
	total := 0
	for _, res := range results {
		bySource[res.SourceName] = res
		if res.Status.Usable() {
			total += res.ItemCount
		} else {
			failed = append(failed, res.SourceName)
		}
	}
	sort.Strings(failed)

	return &models.ResearchResult{
		Question:         question,
		SearchQuery:      searchQuery,
		ExecutiveSummary: summary,
		KeyFindings:      findings,
		Recommendations:  recommendations,
		Analysis:         analysis,
		AnalysisDegraded: degraded,
		AnalysisProvider: provider,
		Report:           report,
		Disclaimer:       BuildDisclaimer(results),
		BySource:         bySource,
		FailedSources:    failed,
		TotalItems:       total,
		ExecutionSeconds: elapsed.Seconds(),
	}
}

// ExtractSections walks the report's markdown AST and pulls out the
// executive summary paragraphs and the findings/recommendations lists.
// Missing sections come back empty; the full report text is still kept.
func ExtractSections(report string) (string, []string, []string) {
	if report == "" {
		return "", nil, nil
	}

	source := []byte(report)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	const (
		sectionNone = iota
		sectionSummary
		sectionFindings
		sectionRecommendations
	)

	var summaryParts, findings, recommendations []string
	section := sectionNone

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.Heading:
			title := strings.ToUpper(string(n.Text(source)))
			switch {
			case strings.Contains(title, "EXECUTIVE SUMMARY"):
				section = sectionSummary
			case strings.Contains(title, "KEY FINDINGS"):
				section = sectionFindings
			case strings.Contains(title, "RECOMMENDATIONS"):
				section = sectionRecommendations
			default:
				section = sectionNone
			}
		case *ast.Paragraph:
			if section == sectionSummary {
				summaryParts = append(summaryParts, string(n.Text(source)))
			}
		case *ast.List:
			if section != sectionFindings && section != sectionRecommendations {
				continue
			}
			for item := n.FirstChild(); item != nil; item = item.NextSibling() {
				line := strings.TrimSpace(string(item.Text(source)))
				if line == "" {
					continue
				}
				if section == sectionFindings {
					findings = append(findings, line)
				} else {
					recommendations = append(recommendations, line)
				}
			}
		}
	}

	return strings.Join(summaryParts, "\n\n"), findings, recommendations
}

func countUsable(results []models.SourceResult) int {
	n := 0
	for _, res := range results {
		if res.Status.Usable() {
			n++
		}
	}
	return n
}

func formatMetrics(metrics map[string]any) string {
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, metrics[k]))
	}
	return strings.Join(parts, ", ")
}
