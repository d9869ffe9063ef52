package wcag

import "allycheck/internal/types"

// criteria is the WCAG 2.2 success criterion table, in document order.
// 4.1.1 Parsing is obsolete in 2.2 and omitted.
var criteria = []Criterion{
	// 1 Perceivable
	{ID: "1.1.1", Name: "Non-text Content", Level: types.LevelA, Guideline: "1.1 Text Alternatives", Slug: "non-text-content",
		Description: "All non-text content that is presented to the user has a text alternative that serves the equivalent purpose.",
		Examples:    []string{"Images have alt text that describes their content or function", "Form inputs have associated labels", "Icons have accessible names", "Decorative images have empty alt attributes"}},
	{ID: "1.2.1", Name: "Audio-only and Video-only (Prerecorded)", Level: types.LevelA, Guideline: "1.2 Time-based Media", Slug: "audio-only-and-video-only-prerecorded",
		Description: "Prerecorded audio-only and video-only media have an alternative that presents equivalent information."},
	{ID: "1.2.2", Name: "Captions (Prerecorded)", Level: types.LevelA, Guideline: "1.2 Time-based Media", Slug: "captions-prerecorded",
		Description: "Captions are provided for all prerecorded audio content in synchronized media."},
	{ID: "1.2.3", Name: "Audio Description or Media Alternative (Prerecorded)", Level: types.LevelA, Guideline: "1.2 Time-based Media", Slug: "audio-description-or-media-alternative-prerecorded",
		Description: "An alternative for time-based media or audio description of the prerecorded video content is provided."},
	{ID: "1.2.4", Name: "Captions (Live)", Level: types.LevelAA, Guideline: "1.2 Time-based Media", Slug: "captions-live",
		Description: "Captions are provided for all live audio content in synchronized media."},
	{ID: "1.2.5", Name: "Audio Description (Prerecorded)", Level: types.LevelAA, Guideline: "1.2 Time-based Media", Slug: "audio-description-prerecorded",
		Description: "Audio description is provided for all prerecorded video content in synchronized media."},
	{ID: "1.2.6", Name: "Sign Language (Prerecorded)", Level: types.LevelAAA, Guideline: "1.2 Time-based Media", Slug: "sign-language-prerecorded",
		Description: "Sign language interpretation is provided for all prerecorded audio content in synchronized media."},
	{ID: "1.2.7", Name: "Extended Audio Description (Prerecorded)", Level: types.LevelAAA, Guideline: "1.2 Time-based Media", Slug: "extended-audio-description-prerecorded",
		Description: "Extended audio description is provided where pauses in foreground audio are insufficient."},
	{ID: "1.2.8", Name: "Media Alternative (Prerecorded)", Level: types.LevelAAA, Guideline: "1.2 Time-based Media", Slug: "media-alternative-prerecorded",
		Description: "An alternative for time-based media is provided for all prerecorded synchronized media and video-only media."},
	{ID: "1.2.9", Name: "Audio-only (Live)", Level: types.LevelAAA, Guideline: "1.2 Time-based Media", Slug: "audio-only-live",
		Description: "An alternative that presents equivalent information for live audio-only content is provided."},
	{ID: "1.3.1", Name: "Info and Relationships", Level: types.LevelA, Guideline: "1.3 Adaptable", Slug: "info-and-relationships",
		Description: "Information, structure, and relationships conveyed through presentation can be programmatically determined or are available in text.",
		Examples:    []string{"Headings are marked up with <h1>-<h6> elements", "Lists use <ul>, <ol>, or <dl> elements", "Data tables use proper table markup with <th> headers", "Form labels are associated with inputs using <label> or aria-labelledby"}},
	{ID: "1.3.2", Name: "Meaningful Sequence", Level: types.LevelA, Guideline: "1.3 Adaptable", Slug: "meaningful-sequence",
		Description: "When the sequence in which content is presented affects its meaning, a correct reading sequence can be programmatically determined."},
	{ID: "1.3.3", Name: "Sensory Characteristics", Level: types.LevelA, Guideline: "1.3 Adaptable", Slug: "sensory-characteristics",
		Description: "Instructions do not rely solely on sensory characteristics such as shape, color, size, visual location, orientation, or sound."},
	{ID: "1.3.4", Name: "Orientation", Level: types.LevelAA, Guideline: "1.3 Adaptable", Slug: "orientation",
		Description: "Content does not restrict its view and operation to a single display orientation unless essential."},
	{ID: "1.3.5", Name: "Identify Input Purpose", Level: types.LevelAA, Guideline: "1.3 Adaptable", Slug: "identify-input-purpose",
		Description: "The purpose of input fields collecting information about the user can be programmatically determined."},
	{ID: "1.3.6", Name: "Identify Purpose", Level: types.LevelAAA, Guideline: "1.3 Adaptable", Slug: "identify-purpose",
		Description: "The purpose of user interface components, icons, and regions can be programmatically determined."},
	{ID: "1.4.1", Name: "Use of Color", Level: types.LevelA, Guideline: "1.4 Distinguishable", Slug: "use-of-color",
		Description: "Color is not used as the only visual means of conveying information, indicating an action, prompting a response, or distinguishing a visual element."},
	{ID: "1.4.2", Name: "Audio Control", Level: types.LevelA, Guideline: "1.4 Distinguishable", Slug: "audio-control",
		Description: "Audio that plays automatically for more than 3 seconds can be paused, stopped, or controlled independently."},
	{ID: "1.4.3", Name: "Contrast (Minimum)", Level: types.LevelAA, Guideline: "1.4 Distinguishable", Slug: "contrast-minimum",
		Description: "The visual presentation of text and images of text has a contrast ratio of at least 4.5:1.",
		Examples:    []string{"Normal text has 4.5:1 contrast ratio", "Large text (18pt+) has 3:1 contrast ratio", "Use color contrast tools to verify ratios"}},
	{ID: "1.4.4", Name: "Resize Text", Level: types.LevelAA, Guideline: "1.4 Distinguishable", Slug: "resize-text",
		Description: "Text can be resized without assistive technology up to 200 percent without loss of content or functionality."},
	{ID: "1.4.5", Name: "Images of Text", Level: types.LevelAA, Guideline: "1.4 Distinguishable", Slug: "images-of-text",
		Description: "Text is used to convey information rather than images of text, except where customizable or essential."},
	{ID: "1.4.6", Name: "Contrast (Enhanced)", Level: types.LevelAAA, Guideline: "1.4 Distinguishable", Slug: "contrast-enhanced",
		Description: "The visual presentation of text and images of text has a contrast ratio of at least 7:1."},
	{ID: "1.4.7", Name: "Low or No Background Audio", Level: types.LevelAAA, Guideline: "1.4 Distinguishable", Slug: "low-or-no-background-audio",
		Description: "Prerecorded audio-only content with speech has no or very low background sounds."},
	{ID: "1.4.8", Name: "Visual Presentation", Level: types.LevelAAA, Guideline: "1.4 Distinguishable", Slug: "visual-presentation",
		Description: "Blocks of text offer user control over colors, width, justification, spacing, and resizing."},
	{ID: "1.4.9", Name: "Images of Text (No Exception)", Level: types.LevelAAA, Guideline: "1.4 Distinguishable", Slug: "images-of-text-no-exception",
		Description: "Images of text are only used for pure decoration or where a particular presentation is essential."},
	{ID: "1.4.10", Name: "Reflow", Level: types.LevelAA, Guideline: "1.4 Distinguishable", Slug: "reflow",
		Description: "Content can be presented without loss of information or functionality and without two-dimensional scrolling at 320 CSS pixels width."},
	{ID: "1.4.11", Name: "Non-text Contrast", Level: types.LevelAA, Guideline: "1.4 Distinguishable", Slug: "non-text-contrast",
		Description: "User interface components and graphical objects have a contrast ratio of at least 3:1 against adjacent colors."},
	{ID: "1.4.12", Name: "Text Spacing", Level: types.LevelAA, Guideline: "1.4 Distinguishable", Slug: "text-spacing",
		Description: "No loss of content or functionality occurs when users override line height, paragraph, letter, and word spacing."},
	{ID: "1.4.13", Name: "Content on Hover or Focus", Level: types.LevelAA, Guideline: "1.4 Distinguishable", Slug: "content-on-hover-or-focus",
		Description: "Additional content shown on hover or focus is dismissible, hoverable, and persistent."},

	// 2 Operable
	{ID: "2.1.1", Name: "Keyboard", Level: types.LevelA, Guideline: "2.1 Keyboard Accessible", Slug: "keyboard",
		Description: "All functionality of the content is operable through a keyboard interface.",
		Examples:    []string{"All interactive elements can be accessed via Tab key", "Custom widgets support keyboard interaction", "No keyboard traps exist", "Skip links allow bypassing repetitive content"}},
	{ID: "2.1.2", Name: "No Keyboard Trap", Level: types.LevelA, Guideline: "2.1 Keyboard Accessible", Slug: "no-keyboard-trap",
		Description: "Keyboard focus can be moved away from any component using only a keyboard interface."},
	{ID: "2.1.3", Name: "Keyboard (No Exception)", Level: types.LevelAAA, Guideline: "2.1 Keyboard Accessible", Slug: "keyboard-no-exception",
		Description: "All functionality of the content is operable through a keyboard interface without requiring specific timings."},
	{ID: "2.1.4", Name: "Character Key Shortcuts", Level: types.LevelA, Guideline: "2.1 Keyboard Accessible", Slug: "character-key-shortcuts",
		Description: "Single character key shortcuts can be turned off, remapped, or are only active on focus."},
	{ID: "2.2.1", Name: "Timing Adjustable", Level: types.LevelA, Guideline: "2.2 Enough Time", Slug: "timing-adjustable",
		Description: "Users can turn off, adjust, or extend each time limit set by the content."},
	{ID: "2.2.2", Name: "Pause, Stop, Hide", Level: types.LevelA, Guideline: "2.2 Enough Time", Slug: "pause-stop-hide",
		Description: "Moving, blinking, scrolling, or auto-updating information can be paused, stopped, or hidden."},
	{ID: "2.2.3", Name: "No Timing", Level: types.LevelAAA, Guideline: "2.2 Enough Time", Slug: "no-timing",
		Description: "Timing is not an essential part of the event or activity presented by the content."},
	{ID: "2.2.4", Name: "Interruptions", Level: types.LevelAAA, Guideline: "2.2 Enough Time", Slug: "interruptions",
		Description: "Interruptions can be postponed or suppressed by the user, except in emergencies."},
	{ID: "2.2.5", Name: "Re-authenticating", Level: types.LevelAAA, Guideline: "2.2 Enough Time", Slug: "re-authenticating",
		Description: "When an authenticated session expires, the user can continue without loss of data after re-authenticating."},
	{ID: "2.2.6", Name: "Timeouts", Level: types.LevelAAA, Guideline: "2.2 Enough Time", Slug: "timeouts",
		Description: "Users are warned of the duration of any inactivity that could cause data loss."},
	{ID: "2.3.1", Name: "Three Flashes or Below Threshold", Level: types.LevelA, Guideline: "2.3 Seizures and Physical Reactions", Slug: "three-flashes-or-below-threshold",
		Description: "Web pages do not contain anything that flashes more than three times in any one second period."},
	{ID: "2.3.2", Name: "Three Flashes", Level: types.LevelAAA, Guideline: "2.3 Seizures and Physical Reactions", Slug: "three-flashes",
		Description: "Web pages do not contain anything that flashes more than three times in any one second period."},
	{ID: "2.3.3", Name: "Animation from Interactions", Level: types.LevelAAA, Guideline: "2.3 Seizures and Physical Reactions", Slug: "animation-from-interactions",
		Description: "Motion animation triggered by interaction can be disabled unless essential."},
	{ID: "2.4.1", Name: "Bypass Blocks", Level: types.LevelA, Guideline: "2.4 Navigable", Slug: "bypass-blocks",
		Description: "A mechanism is available to bypass blocks of content that are repeated on multiple Web pages.",
		Examples:    []string{"Skip to main content link", "ARIA landmarks (main, navigation, etc.)", "Heading structure for navigation"}},
	{ID: "2.4.2", Name: "Page Titled", Level: types.LevelA, Guideline: "2.4 Navigable", Slug: "page-titled",
		Description: "Web pages have titles that describe topic or purpose."},
	{ID: "2.4.3", Name: "Focus Order", Level: types.LevelA, Guideline: "2.4 Navigable", Slug: "focus-order",
		Description: "Focusable components receive focus in an order that preserves meaning and operability."},
	{ID: "2.4.4", Name: "Link Purpose (In Context)", Level: types.LevelA, Guideline: "2.4 Navigable", Slug: "link-purpose-in-context",
		Description: "The purpose of each link can be determined from the link text alone or together with its programmatically determined context."},
	{ID: "2.4.5", Name: "Multiple Ways", Level: types.LevelAA, Guideline: "2.4 Navigable", Slug: "multiple-ways",
		Description: "More than one way is available to locate a Web page within a set of Web pages."},
	{ID: "2.4.6", Name: "Headings and Labels", Level: types.LevelAA, Guideline: "2.4 Navigable", Slug: "headings-and-labels",
		Description: "Headings and labels describe topic or purpose."},
	{ID: "2.4.7", Name: "Focus Visible", Level: types.LevelAA, Guideline: "2.4 Navigable", Slug: "focus-visible",
		Description: "Any keyboard operable user interface has a mode of operation where the keyboard focus indicator is visible."},
	{ID: "2.4.8", Name: "Location", Level: types.LevelAAA, Guideline: "2.4 Navigable", Slug: "location",
		Description: "Information about the user's location within a set of Web pages is available."},
	{ID: "2.4.9", Name: "Link Purpose (Link Only)", Level: types.LevelAAA, Guideline: "2.4 Navigable", Slug: "link-purpose-link-only",
		Description: "The purpose of each link can be identified from link text alone."},
	{ID: "2.4.10", Name: "Section Headings", Level: types.LevelAAA, Guideline: "2.4 Navigable", Slug: "section-headings",
		Description: "Section headings are used to organize the content."},
	{ID: "2.4.11", Name: "Focus Not Obscured (Minimum)", Level: types.LevelAA, Guideline: "2.4 Navigable", Slug: "focus-not-obscured-minimum",
		Description: "When a component receives keyboard focus, it is not entirely hidden due to author-created content."},
	{ID: "2.4.12", Name: "Focus Not Obscured (Enhanced)", Level: types.LevelAAA, Guideline: "2.4 Navigable", Slug: "focus-not-obscured-enhanced",
		Description: "When a component receives keyboard focus, no part of it is hidden by author-created content."},
	{ID: "2.4.13", Name: "Focus Appearance", Level: types.LevelAAA, Guideline: "2.4 Navigable", Slug: "focus-appearance",
		Description: "The keyboard focus indicator is of sufficient size and contrast."},
	{ID: "2.5.1", Name: "Pointer Gestures", Level: types.LevelA, Guideline: "2.5 Input Modalities", Slug: "pointer-gestures",
		Description: "Functionality using multipoint or path-based gestures can be operated with a single pointer without a path-based gesture."},
	{ID: "2.5.2", Name: "Pointer Cancellation", Level: types.LevelA, Guideline: "2.5 Input Modalities", Slug: "pointer-cancellation",
		Description: "Functions operated with a single pointer can be aborted or undone."},
	{ID: "2.5.3", Name: "Label in Name", Level: types.LevelA, Guideline: "2.5 Input Modalities", Slug: "label-in-name",
		Description: "For components with visible text labels, the accessible name contains the text that is presented visually."},
	{ID: "2.5.4", Name: "Motion Actuation", Level: types.LevelA, Guideline: "2.5 Input Modalities", Slug: "motion-actuation",
		Description: "Functionality operated by device motion can also be operated by user interface components and can be disabled."},
	{ID: "2.5.5", Name: "Target Size (Enhanced)", Level: types.LevelAAA, Guideline: "2.5 Input Modalities", Slug: "target-size-enhanced",
		Description: "The size of the target for pointer inputs is at least 44 by 44 CSS pixels."},
	{ID: "2.5.6", Name: "Concurrent Input Mechanisms", Level: types.LevelAAA, Guideline: "2.5 Input Modalities", Slug: "concurrent-input-mechanisms",
		Description: "Web content does not restrict use of input modalities available on a platform."},
	{ID: "2.5.7", Name: "Dragging Movements", Level: types.LevelAA, Guideline: "2.5 Input Modalities", Slug: "dragging-movements",
		Description: "Functionality that uses a dragging movement can be achieved by a single pointer without dragging."},
	{ID: "2.5.8", Name: "Target Size (Minimum)", Level: types.LevelAA, Guideline: "2.5 Input Modalities", Slug: "target-size-minimum",
		Description: "The size of the target for pointer inputs is at least 24 by 24 CSS pixels, with exceptions."},

	// 3 Understandable
	{ID: "3.1.1", Name: "Language of Page", Level: types.LevelA, Guideline: "3.1 Readable", Slug: "language-of-page",
		Description: "The default human language of each Web page can be programmatically determined.",
		Examples:    []string{`<html lang="en"> for English pages`, `<html lang="sv"> for Swedish pages`, "Screen readers use lang attribute for pronunciation"}},
	{ID: "3.1.2", Name: "Language of Parts", Level: types.LevelAA, Guideline: "3.1 Readable", Slug: "language-of-parts",
		Description: "The human language of each passage or phrase can be programmatically determined."},
	{ID: "3.1.3", Name: "Unusual Words", Level: types.LevelAAA, Guideline: "3.1 Readable", Slug: "unusual-words",
		Description: "A mechanism is available for identifying definitions of words used in an unusual or restricted way."},
	{ID: "3.1.4", Name: "Abbreviations", Level: types.LevelAAA, Guideline: "3.1 Readable", Slug: "abbreviations",
		Description: "A mechanism for identifying the expanded form or meaning of abbreviations is available."},
	{ID: "3.1.5", Name: "Reading Level", Level: types.LevelAAA, Guideline: "3.1 Readable", Slug: "reading-level",
		Description: "Supplemental content is available when text requires reading ability above lower secondary education level."},
	{ID: "3.1.6", Name: "Pronunciation", Level: types.LevelAAA, Guideline: "3.1 Readable", Slug: "pronunciation",
		Description: "A mechanism is available for identifying pronunciation where meaning is ambiguous without it."},
	{ID: "3.2.1", Name: "On Focus", Level: types.LevelA, Guideline: "3.2 Predictable", Slug: "on-focus",
		Description: "Receiving focus does not initiate a change of context."},
	{ID: "3.2.2", Name: "On Input", Level: types.LevelA, Guideline: "3.2 Predictable", Slug: "on-input",
		Description: "Changing a setting does not automatically cause a change of context unless the user has been advised."},
	{ID: "3.2.3", Name: "Consistent Navigation", Level: types.LevelAA, Guideline: "3.2 Predictable", Slug: "consistent-navigation",
		Description: "Navigational mechanisms repeated on multiple pages occur in the same relative order."},
	{ID: "3.2.4", Name: "Consistent Identification", Level: types.LevelAA, Guideline: "3.2 Predictable", Slug: "consistent-identification",
		Description: "Components with the same functionality are identified consistently."},
	{ID: "3.2.5", Name: "Change on Request", Level: types.LevelAAA, Guideline: "3.2 Predictable", Slug: "change-on-request",
		Description: "Changes of context are initiated only by user request or a mechanism is available to turn them off."},
	{ID: "3.2.6", Name: "Consistent Help", Level: types.LevelA, Guideline: "3.2 Predictable", Slug: "consistent-help",
		Description: "Help mechanisms repeated on multiple pages occur in the same relative order."},
	{ID: "3.3.1", Name: "Error Identification", Level: types.LevelA, Guideline: "3.3 Input Assistance", Slug: "error-identification",
		Description: "If an input error is automatically detected, the item that is in error is identified and the error is described to the user in text.",
		Examples:    []string{"Form validation errors are clearly described", "Error messages are associated with form fields", "Errors are announced to screen readers"}},
	{ID: "3.3.2", Name: "Labels or Instructions", Level: types.LevelA, Guideline: "3.3 Input Assistance", Slug: "labels-or-instructions",
		Description: "Labels or instructions are provided when content requires user input."},
	{ID: "3.3.3", Name: "Error Suggestion", Level: types.LevelAA, Guideline: "3.3 Input Assistance", Slug: "error-suggestion",
		Description: "If an input error is detected and suggestions for correction are known, the suggestions are provided to the user."},
	{ID: "3.3.4", Name: "Error Prevention (Legal, Financial, Data)", Level: types.LevelAA, Guideline: "3.3 Input Assistance", Slug: "error-prevention-legal-financial-data",
		Description: "Submissions with legal or financial consequences are reversible, checked, or confirmed."},
	{ID: "3.3.5", Name: "Help", Level: types.LevelAAA, Guideline: "3.3 Input Assistance", Slug: "help",
		Description: "Context-sensitive help is available."},
	{ID: "3.3.6", Name: "Error Prevention (All)", Level: types.LevelAAA, Guideline: "3.3 Input Assistance", Slug: "error-prevention-all",
		Description: "All submissions are reversible, checked, or confirmed."},
	{ID: "3.3.7", Name: "Redundant Entry", Level: types.LevelA, Guideline: "3.3 Input Assistance", Slug: "redundant-entry",
		Description: "Information previously entered by the user in the same process is auto-populated or available to select."},
	{ID: "3.3.8", Name: "Accessible Authentication (Minimum)", Level: types.LevelAA, Guideline: "3.3 Input Assistance", Slug: "accessible-authentication-minimum",
		Description: "A cognitive function test is not required for any step in an authentication process unless an alternative is provided."},
	{ID: "3.3.9", Name: "Accessible Authentication (Enhanced)", Level: types.LevelAAA, Guideline: "3.3 Input Assistance", Slug: "accessible-authentication-enhanced",
		Description: "A cognitive function test, including object recognition, is not required for any step in an authentication process."},

	// 4 Robust
	{ID: "4.1.2", Name: "Name, Role, Value", Level: types.LevelA, Guideline: "4.1 Compatible", Slug: "name-role-value",
		Description: "For all user interface components, the name and role can be programmatically determined and states, properties, and values can be set.",
		Examples:    []string{"Custom controls expose an accessible name", "ARIA roles match widget behaviour", "State changes such as aria-expanded are updated"}},
	{ID: "4.1.3", Name: "Status Messages", Level: types.LevelAA, Guideline: "4.1 Compatible", Slug: "status-messages",
		Description: "Status messages can be programmatically determined through role or properties so they can be presented without receiving focus."},
}
