package research

import (
	"allycheck/internal/tools"
)

// RegisterAll registers all retrieval and reference tools with the given registry.
func RegisterAll(registry *tools.Registry, fetcher *Fetcher) error {
	allTools := []*tools.Tool{
		// Retrieval
		fetcher.FetchURLTool(),
		fetcher.FetchMetadataTool(),

		// WCAG catalog
		WCAGCriterionTool(),
		SearchByPrincipleTool(),
		AllCriteriaTool(),

		// WAI guidance
		fetcher.WAIResourceTool(),
		fetcher.ARIAPatternTool(),
		WAITipsTool(),
	}

	for _, tool := range allTools {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}

	return nil
}
