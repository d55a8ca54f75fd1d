package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pcbuilder/internal/builder"
	"pcbuilder/internal/domain"
)

var (
	flagBudget    float64
	flagPurpose   string
	flagOverrides []string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run a single build and print it as JSON",
	Long: `Run one build against the catalog and print the result to stdout.

Examples:
  pcbuilder build --budget 1200 --purpose gaming
  pcbuilder build --budget 1200 --purpose gaming --override cpu=B07JGCSMJX`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().Float64Var(&flagBudget, "budget", 0, "Total build budget")
	buildCmd.Flags().StringVar(&flagPurpose, "purpose", "", "Build purpose: gaming, office, development")
	buildCmd.Flags().StringArrayVar(&flagOverrides, "override", nil, "Pin a component as type=ASIN (repeatable)")
	_ = buildCmd.MarkFlagRequired("budget")
}

func runBuild(cmd *cobra.Command, _ []string) error {
	if flagBudget <= 0 {
		return fmt.Errorf("--budget must be positive, got %v", flagBudget)
	}
	overrides, err := parseOverrides(flagOverrides)
	if err != nil {
		return err
	}

	_, dbStore, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer dbStore.Close()

	result, err := builder.New(dbStore, logger).Build(cmd.Context(), builder.Request{
		Budget:    flagBudget,
		Purpose:   flagPurpose,
		Overrides: overrides,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// parseOverrides turns type=ASIN pairs into a build override map.
func parseOverrides(values []string) (map[domain.ComponentType]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	overrides := make(map[domain.ComponentType]string, len(values))
	for _, v := range values {
		key, asin, ok := strings.Cut(v, "=")
		asin = strings.TrimSpace(asin)
		if !ok || asin == "" {
			return nil, fmt.Errorf("invalid --override %q: expected type=ASIN", v)
		}
		ct, err := domain.ParseComponentType(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("invalid --override %q: %w", v, err)
		}
		overrides[ct] = asin
	}
	return overrides, nil
}
