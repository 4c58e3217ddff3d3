package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/browser"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"mcs-mcp/internal/visuals"
)

var openInBrowser bool

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Render reference documentation for care-matcher",
}

var stateDiagramCmd = &cobra.Command{
	Use:   "state-diagram",
	Short: "Render the open-shift and proposal state machines as Mermaid diagrams",
	RunE: func(cmd *cobra.Command, args []string) error {
		page := visuals.RenderHTMLPage(
			"care-matcher state machines",
			visuals.RenderShiftStateDiagram(),
			visuals.RenderProposalStateDiagram(),
		)

		if !openInBrowser {
			fmt.Println(visuals.RenderShiftStateDiagram())
			fmt.Println()
			fmt.Println(visuals.RenderProposalStateDiagram())
			return nil
		}

		path := filepath.Join(os.TempDir(), "care-matcher-state-diagram.html")
		if err := os.WriteFile(path, []byte(page), 0644); err != nil {
			return fmt.Errorf("write state diagram page: %w", err)
		}
		log.Info().Str("path", path).Msg("opening state diagram in browser")
		return browser.OpenFile(path)
	},
}

func init() {
	stateDiagramCmd.Flags().BoolVar(&openInBrowser, "open", false, "open the rendered diagrams in a browser instead of printing Mermaid source")
	docsCmd.AddCommand(stateDiagramCmd)
}
