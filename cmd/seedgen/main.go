// Command seedgen generates deterministic caregiver/shift/history fixtures
// for local development and manual exercising of care-matcher, the way the
// teacher's cmd/mockgen generated synthetic Jira issue histories for
// internal/simulation and internal/stats.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"mcs-mcp/cmd/seedgen/engine"
	"mcs-mcp/internal/matching/dataport"
	"mcs-mcp/internal/matching/history"
	"mcs-mcp/internal/matching/store"
)

func main() {
	scenario := flag.String("scenario", "balanced", "Scenario to generate: calm, balanced, chaos")
	outDir := flag.String("out", "./cache", "Output directory for the generated snapshot files")
	caregivers := flag.Int("caregivers", 20, "Number of caregivers to generate")
	shifts := flag.Int("shifts", 50, "Number of open shifts to generate")
	seed := flag.Int64("seed", 1, "Random seed for deterministic generation")
	orgIDFlag := flag.String("org", "", "Organization UUID (generated if omitted)")
	branchIDFlag := flag.String("branch", "", "Branch UUID (generated if omitted)")
	flag.Parse()

	orgID := parseOrGenerate(*orgIDFlag)
	branchID := parseOrGenerate(*branchIDFlag)

	cfg := engine.GeneratorConfig{
		Scenario:       *scenario,
		CaregiverCount: *caregivers,
		ShiftCount:     *shifts,
		OrganizationID: orgID,
		BranchID:       branchID,
		Now:            time.Now().UTC(),
		Seed:           *seed,
	}

	fmt.Printf("Generating scenario %q (%d caregivers, %d shifts) into %s...\n", cfg.Scenario, cfg.CaregiverCount, cfg.ShiftCount, *outDir)

	result := engine.Generate(cfg)

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	port := dataport.NewMemoryPort()
	for _, v := range result.Visits {
		port.SeedVisit(v)
	}
	for _, c := range result.Caregivers {
		port.SeedCaregiver(c)
	}
	for _, s := range result.ReliabilitySamples {
		port.SeedReliabilitySample(s)
	}
	for _, r := range result.Rejections {
		port.RecordRejection(r.CaregiverID, r.At)
	}
	if err := port.Save(*outDir); err != nil {
		fmt.Fprintf(os.Stderr, "failed to save caregiver/visit snapshot: %v\n", err)
		os.Exit(1)
	}

	proposals := store.NewMemoryStore()
	for i := range result.OpenShifts {
		if err := proposals.CreateOpenShift(context.Background(), &result.OpenShifts[i]); err != nil {
			fmt.Fprintf(os.Stderr, "failed to seed open shift: %v\n", err)
			os.Exit(1)
		}
	}
	if err := proposals.SaveSnapshot(*outDir); err != nil {
		fmt.Fprintf(os.Stderr, "failed to save shift snapshot: %v\n", err)
		os.Exit(1)
	}

	hist := history.NewStore()
	for _, row := range result.History {
		hist.Append(context.Background(), row)
	}
	if err := hist.Save(*outDir); err != nil {
		fmt.Fprintf(os.Stderr, "failed to save history snapshot: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Done. Organization=%s Branch=%s\n", orgID, branchID)
}

func parseOrGenerate(s string) uuid.UUID {
	if s == "" {
		return uuid.New()
	}
	id, err := uuid.Parse(s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid UUID %q: %v\n", s, err)
		os.Exit(1)
	}
	return id
}
