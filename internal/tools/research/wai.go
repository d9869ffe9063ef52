package research

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"allycheck/internal/tools"
)

// waiExcerptChars bounds how much of a WAI page is returned to the model.
const waiExcerptChars = 5000

type waiResource struct {
	URL         string
	Title       string
	Description string
}

var waiResources = map[string]waiResource{
	"developing":      {"https://www.w3.org/WAI/tips/developing/", "Developing for Web Accessibility", "Tips for getting started with web accessibility development"},
	"designing":       {"https://www.w3.org/WAI/tips/designing/", "Designing for Web Accessibility", "Tips for user interface and visual design"},
	"writing":         {"https://www.w3.org/WAI/tips/writing/", "Writing for Web Accessibility", "Tips for writing and presenting content"},
	"main":            {"https://www.w3.org/WAI/", "W3C Web Accessibility Initiative", "Main WAI homepage with standards, guidelines, and resources"},
	"understanding":   {"https://www.w3.org/WAI/WCAG21/Understanding/", "Understanding WCAG 2.1", "Understanding documents for WCAG 2.1 success criteria"},
	"understanding22": {"https://www.w3.org/WAI/WCAG22/Understanding/", "Understanding WCAG 2.2", "Understanding documents for WCAG 2.2 success criteria"},
	"aria":            {"https://www.w3.org/WAI/ARIA/apg/", "ARIA Authoring Practices Guide (APG)", "WAI-ARIA patterns and widgets"},
}

const apgPatternsURL = "https://www.w3.org/WAI/ARIA/apg/patterns/"

var ariaPatterns = map[string]string{
	"dialog":     "dialog-modal",
	"modal":      "dialog-modal",
	"tabs":       "tabs",
	"accordion":  "accordion",
	"menu":       "menubar",
	"button":     "button",
	"combobox":   "combobox",
	"disclosure": "disclosure",
	"listbox":    "listbox",
	"tooltip":    "tooltip",
	"breadcrumb": "breadcrumb",
	"carousel":   "carousel",
	"feed":       "feed",
	"table":      "table",
	"grid":       "grid",
	"treegrid":   "treegrid",
	"tree":       "treeview",
}

func waiResourceNames() []any {
	names := make([]string, 0, len(waiResources))
	for k := range waiResources {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]any, len(names))
	for i, n := range names {
		out[i] = n
	}
	return out
}

// fetchExcerpt fetches a page through the cache and returns its readable text.
func (f *Fetcher) fetchExcerpt(ctx context.Context, url string) (string, error) {
	return cached(ctx, f.Cache, CacheKey("wai", url), func() (string, error) {
		page, err := f.Get(ctx, url, 30*time.Second, true)
		if err != nil {
			return "", err
		}
		return truncate(htmlToText(page.Body), waiExcerptChars), nil
	})
}

type waiResourceArgs struct {
	Resource     string `json:"resource"`
	SpecificPage string `json:"specific_page"`
}

func (a *waiResourceArgs) Validate() error {
	if _, ok := waiResources[a.Resource]; !ok {
		return fmt.Errorf("unknown resource %q", a.Resource)
	}
	if strings.Contains(a.SpecificPage, "..") || strings.Contains(a.SpecificPage, "://") {
		return errors.New("specific_page must be a relative page path")
	}
	return nil
}

// WAIResourceTool returns get_wai_resource.
func (f *Fetcher) WAIResourceTool() *tools.Tool {
	return tools.NewTyped("get_wai_resource",
		"Get W3C WAI resource content (developing tips, designing tips, writing tips, ARIA patterns, Understanding docs)",
		tools.CategoryReference,
		tools.ToolSchema{
			Required: []string{"resource"},
			Properties: map[string]tools.Property{
				"resource":      {Type: "string", Description: "Resource to fetch", Enum: waiResourceNames()},
				"specific_page": {Type: "string", Description: "Optional specific page path (e.g., 'headings-and-labels.html' for Understanding docs)"},
			},
		},
		func(ctx context.Context, args waiResourceArgs) (string, error) {
			res := waiResources[args.Resource]
			url, title := res.URL, res.Title
			if args.SpecificPage != "" {
				url = strings.TrimRight(url, "/") + "/" + strings.TrimLeft(args.SpecificPage, "/")
				title += " - " + args.SpecificPage
			}
			text, err := f.fetchExcerpt(ctx, url)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("# %s\n\nSource: %s\n\n%s\n\n(visit %s for full content)", title, url, text, url), nil
		},
	)
}

type ariaPatternArgs struct {
	Pattern string `json:"pattern"`
}

func (a *ariaPatternArgs) Validate() error {
	if strings.TrimSpace(a.Pattern) == "" {
		return errors.New("pattern is required")
	}
	return nil
}

// ARIAPatternTool returns get_aria_pattern.
func (f *Fetcher) ARIAPatternTool() *tools.Tool {
	return tools.NewTyped("get_aria_pattern",
		"Get WAI-ARIA pattern documentation for interactive components",
		tools.CategoryReference,
		tools.ToolSchema{
			Required: []string{"pattern"},
			Properties: map[string]tools.Property{
				"pattern": {Type: "string", Description: "ARIA pattern name (e.g., 'dialog', 'tabs', 'accordion', 'menu', 'button', 'combobox')"},
			},
		},
		func(ctx context.Context, args ariaPatternArgs) (string, error) {
			name := strings.ToLower(strings.TrimSpace(args.Pattern))
			slug, ok := ariaPatterns[name]
			if !ok {
				known := make([]string, 0, len(ariaPatterns))
				for k := range ariaPatterns {
					known = append(known, k)
				}
				sort.Strings(known)
				return fmt.Sprintf("Pattern '%s' not found. Available patterns: %s\n\nBrowse all patterns at: %s",
					name, strings.Join(known, ", "), apgPatternsURL), nil
			}
			url := apgPatternsURL + slug + "/"
			text, err := f.fetchExcerpt(ctx, url)
			if err != nil {
				return "", fmt.Errorf("fetch ARIA pattern %s (direct link %s): %w", name, url, err)
			}
			return fmt.Sprintf("# WAI-ARIA %s Pattern\n\nSource: %s\n\n%s", titleCase(name), url, text), nil
		},
	)
}

type tipsArgs struct {
	Topic string `json:"topic"`
}

func (a *tipsArgs) Validate() error {
	if strings.TrimSpace(a.Topic) == "" {
		return errors.New("topic is required")
	}
	return nil
}

type tipGroup struct {
	keywords []string
	tips     []string
}

var tipGroups = []tipGroup{
	{[]string{"heading", "label", "title"}, []string{
		"**Developing Tip**: Provide informative, unique page titles and use headings to convey meaning and structure",
		"**Understanding WCAG 2.4.6 (Headings and Labels)**: https://www.w3.org/WAI/WCAG22/Understanding/headings-and-labels.html",
	}},
	{[]string{"form", "input", "label"}, []string{
		"**Developing Tip**: Associate a label with every form control",
		"**Designing Tip**: Provide clear and consistent navigation options",
	}},
	{[]string{"image", "alt", "alternative"}, []string{
		"**Developing Tip**: Provide text alternatives for images",
		"**Writing Tip**: Write meaningful text alternatives for images",
	}},
	{[]string{"color", "colour", "contrast"}, []string{
		"**Designing Tip**: Provide sufficient contrast between foreground and background",
		"**Designing Tip**: Don't use color alone to convey information",
	}},
	{[]string{"keyboard", "navigation", "focus"}, []string{
		"**Developing Tip**: Ensure that all interactive elements are keyboard accessible",
		"**Developing Tip**: Provide a skip link and ensure keyboard focus is visible and clear",
	}},
	{[]string{"aria", "role", "state"}, []string{
		"**ARIA Patterns**: Use WAI-ARIA roles, states, and properties correctly",
		"**Reference**: https://www.w3.org/WAI/ARIA/apg/",
	}},
}

// WAITipsTool returns search_wai_tips. It answers from a static table.
func WAITipsTool() *tools.Tool {
	return tools.NewTyped("search_wai_tips",
		"Search for WAI tips related to a specific accessibility concern (headings, forms, images, colors, etc.)",
		tools.CategoryReference,
		tools.ToolSchema{
			Required: []string{"topic"},
			Properties: map[string]tools.Property{
				"topic": {Type: "string", Description: "Topic to search for (e.g., 'headings', 'forms', 'images', 'color contrast', 'keyboard navigation')"},
			},
		},
		func(_ context.Context, args tipsArgs) (string, error) {
			topic := strings.ToLower(args.Topic)
			var tips []string
			for _, g := range tipGroups {
				for _, kw := range g.keywords {
					if strings.Contains(topic, kw) {
						tips = append(tips, g.tips...)
						break
					}
				}
			}
			if len(tips) == 0 {
				tips = []string{
					fmt.Sprintf("No specific tips found for '%s'. Try: headings, forms, images, color, keyboard, aria", topic),
					"Browse all tips at: https://www.w3.org/WAI/tips/developing/",
				}
			}
			return strings.Join(tips, "\n\n"), nil
		},
	)
}
