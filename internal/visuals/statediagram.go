// Package visuals renders Mermaid diagrams for docs/ops tooling, adapted
// from the teacher's internal/visuals/mermaid.go (same "build a string
// builder full of mermaid directives" shape). Where the teacher charted
// Jira cycle-time/throughput statistics, this package charts the two state
// machines the matcher drives, generated straight from the domain
// package's transition tables so the diagram can never drift from the code.
package visuals

import (
	"fmt"
	"strings"

	"mcs-mcp/internal/matching/domain"
	"mcs-mcp/internal/matching/forecast"
)

// RenderShiftStateDiagram renders the open-shift MatchingStatus machine
// (spec §4.8) as a Mermaid stateDiagram-v2 block.
func RenderShiftStateDiagram() string {
	edges := domain.ShiftTransitionEdges()
	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("stateDiagram-v2\n")
	sb.WriteString("    [*] --> NEW\n")
	for _, from := range domain.AllShiftStatuses {
		for _, to := range edges[from] {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", from, to))
		}
		if len(edges[from]) == 0 {
			sb.WriteString(fmt.Sprintf("    %s --> [*]\n", from))
		}
	}
	sb.WriteString("```")
	return sb.String()
}

// RenderProposalStateDiagram renders the proposal ProposalStatus machine
// (spec §4.9) as a Mermaid stateDiagram-v2 block.
func RenderProposalStateDiagram() string {
	edges := domain.ProposalTransitionEdges()
	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("stateDiagram-v2\n")
	sb.WriteString("    [*] --> PENDING\n")
	for _, from := range domain.AllProposalStatuses {
		for _, to := range edges[from] {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", from, to))
		}
		if len(edges[from]) == 0 {
			sb.WriteString(fmt.Sprintf("    %s --> [*]\n", from))
		}
	}
	sb.WriteString("```")
	return sb.String()
}

// RenderFillProbabilityChart creates a Mermaid bar chart of the
// minutes-to-fill percentile bands from a forecast.Result, the way the
// teacher's GenerateSimulationCDF charted Monte-Carlo duration percentiles.
func RenderFillProbabilityChart(result forecast.Result) string {
	if result.SampleSize == 0 {
		return ""
	}

	labels := []string{
		"\"P10 (Aggressive)\"", "\"P30 (Unlikely)\"", "\"P50 (Coin Toss)\"", "\"P70 (Probable)\"",
		"\"P85 (Likely)\"", "\"P90 (Conservative)\"", "\"P95 (Safe)\"", "\"P98 (Almost Certain)\"",
	}
	p := result.MinutesToFill
	values := []string{
		fmt.Sprintf("%.0f", p.Aggressive), fmt.Sprintf("%.0f", p.Unlikely),
		fmt.Sprintf("%.0f", p.CoinToss), fmt.Sprintf("%.0f", p.Probable),
		fmt.Sprintf("%.0f", p.Likely), fmt.Sprintf("%.0f", p.Conservative),
		fmt.Sprintf("%.0f", p.Safe), fmt.Sprintf("%.0f", p.AlmostCertain),
	}

	maxVal := p.AlmostCertain
	if maxVal == 0 {
		maxVal = 1
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString(fmt.Sprintf("    title \"Fill Probability %.0f%% (minutes to first ACCEPTED proposal)\"\n", result.FillProbability*100))
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Minutes\" 0 --> %.0f\n", maxVal*1.1))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(values, ", ")))
	sb.WriteString("```")
	return sb.String()
}

// RenderHTMLPage wraps one or more mermaid code blocks in a minimal static
// HTML page with the mermaid.js CDN script, for the `care-matcher docs
// state-diagram --open` subcommand to open in a browser.
func RenderHTMLPage(title string, mermaidBlocks ...string) string {
	var body strings.Builder
	for _, block := range mermaidBlocks {
		inner := strings.TrimSuffix(strings.TrimPrefix(block, "```mermaid\n"), "```")
		body.WriteString("<pre class=\"mermaid\">\n")
		body.WriteString(inner)
		body.WriteString("\n</pre>\n")
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<script type="module">
  import mermaid from 'https://cdn.jsdelivr.net/npm/mermaid@10/dist/mermaid.esm.min.mjs';
  mermaid.initialize({ startOnLoad: true });
</script>
</head>
<body>
<h1>%s</h1>
%s
</body>
</html>
`, title, title, body.String())
}
