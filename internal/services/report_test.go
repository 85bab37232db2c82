package services

import (
	"strings"
	"testing"
	"time"

	"trendscope/internal/models"
)

func sampleResults() []models.SourceResult {
	return []models.SourceResult{
		{SourceName: "twitter", DisplayName: "Twitter/X", Status: models.SourceSuccess, ItemCount: 10,
			Items: []models.SourceItem{{Text: "tweet one"}}},
		{SourceName: "reddit", DisplayName: "Reddit", Status: models.SourcePartial, ItemCount: 2, Degraded: true,
			Items: []models.SourceItem{{Title: "thread"}}},
		{SourceName: "tiktok", DisplayName: "TikTok", Status: models.SourceFailed},
		{SourceName: "websearch", DisplayName: "Web Search", Status: models.SourceDisabled},
	}
}

func TestExtractSections(t *testing.T) {
	report := `# Research Report

## EXECUTIVE SUMMARY

First paragraph of the summary.

Second paragraph of the summary.

## KEY FINDINGS

- finding one
- finding two
- finding three

## RECOMMENDATIONS

- do this
- then that

## APPENDIX

Ignored content.
`
	summary, findings, recommendations := ExtractSections(report)

	if !strings.Contains(summary, "First paragraph") || !strings.Contains(summary, "Second paragraph") {
		t.Errorf("summary incomplete: %q", summary)
	}
	if len(findings) != 3 || findings[0] != "finding one" {
		t.Errorf("unexpected findings: %v", findings)
	}
	if len(recommendations) != 2 || recommendations[1] != "then that" {
		t.Errorf("unexpected recommendations: %v", recommendations)
	}
}

func TestExtractSectionsMissing(t *testing.T) {
	summary, findings, recommendations := ExtractSections("just some prose without headings")
	if summary != "" || findings != nil || recommendations != nil {
		t.Errorf("expected empty sections, got %q / %v / %v", summary, findings, recommendations)
	}

	if s, f, r := ExtractSections(""); s != "" || f != nil || r != nil {
		t.Error("empty report should yield empty sections")
	}
}

func TestBuildDisclaimerNamesSources(t *testing.T) {
	disclaimer := BuildDisclaimer(sampleResults())

	if !strings.Contains(disclaimer, "Twitter/X") {
		t.Errorf("disclaimer missing live source: %q", disclaimer)
	}
	if !strings.Contains(disclaimer, "sample data") || !strings.Contains(disclaimer, "Reddit") {
		t.Errorf("disclaimer missing degraded source: %q", disclaimer)
	}
	if !strings.Contains(disclaimer, "no data from TikTok, Web Search") {
		t.Errorf("disclaimer missing failed sources: %q", disclaimer)
	}
}

func TestBuildResultTotals(t *testing.T) {
	result := BuildResult("q", "sq", sampleResults(), "analysis text", "stub", false, stubReport, 2*time.Second)

	if result.TotalItems != 12 {
		t.Errorf("expected 12 usable items, got %d", result.TotalItems)
	}
	if len(result.FailedSources) != 2 {
		t.Errorf("expected 2 failed sources, got %v", result.FailedSources)
	}
	if result.FailedSources[0] != "tiktok" || result.FailedSources[1] != "websearch" {
		t.Errorf("failed sources not sorted: %v", result.FailedSources)
	}
	if len(result.BySource) != 4 {
		t.Errorf("expected all 4 sources in by_source, got %d", len(result.BySource))
	}
	if result.ExecutionSeconds != 2 {
		t.Errorf("unexpected execution seconds: %f", result.ExecutionSeconds)
	}
}

func TestPlaceholderAnalysisIsLabeled(t *testing.T) {
	text := PlaceholderAnalysis("the question", sampleResults())
	if !strings.Contains(text, "AUTOMATED SUMMARY") {
		t.Errorf("placeholder not clearly labeled: %q", text)
	}
	if !strings.Contains(text, "12 items") {
		t.Errorf("placeholder missing item totals: %q", text)
	}
}

func TestBuildAnalysisPromptSkipsUnusableSources(t *testing.T) {
	prompt := BuildAnalysisPrompt("q", "sq", sampleResults())
	if !strings.Contains(prompt, "Twitter/X") {
		t.Error("prompt missing successful source")
	}
	if strings.Contains(prompt, "TikTok") {
		t.Error("prompt includes a source that returned no data")
	}
	if !strings.Contains(prompt, "SAMPLE DATA") {
		t.Error("prompt does not flag degraded source data")
	}
}
