// Package research provides the retrieval and reference tools of the audit
// catalog.
//
// Tools:
//   - fetch_url: Fetch a page's HTML for analysis
//   - fetch_url_metadata: Status, title, description and language of a page
//   - get_wcag_criterion / search_wcag_by_principle / get_all_criteria: WCAG 2.2 catalog
//   - get_wai_resource / search_wai_tips / get_aria_pattern: W3C WAI guidance
//
// Remote documents are cached through a Cache (in memory or Redis).
package research
