package pattern

import (
	"github.com/intentest/intentest/internal/model"
)

type builtinDef struct {
	pattern string
	action  model.ActionKind
	params  []ParamSpec
}

// builtinPatterns returns the bounded step vocabulary. Alternations fold
// in the common aliases (tap/press for click, choose for select, enter/
// type/fill for input). Select patterns stay ahead of click patterns so
// "select X from Y" never parses as a click.
func builtinPatterns() []builtinDef {
	return []builtinDef{
		// Navigation
		{
			pattern: `(?:i )?(?:open|navigate to|go to|visit|access) (?:the )?(?:url |page |site )?"?([^"]+?)"?(?: page)?`,
			action:  model.ActionNavigate,
			params:  []ParamSpec{{Name: "url", Value: "$1"}},
		},
		{
			pattern: `(?:i am|the user is) on (?:the )?"?([^"]+?)"? page`,
			action:  model.ActionNavigate,
			params:  []ParamSpec{{Name: "page", Value: "$1"}},
		},

		// Select (before click)
		{
			pattern: `(?:i )?(?:select|choose|pick) "([^"]+)" (?:from|in) (?:the )?"([^"]+)"(?: (?:dropdown|select|list|listbox|combobox))?`,
			action:  model.ActionSelect,
			params: []ParamSpec{
				{Name: "option", Value: "$1"},
				{Name: "element", Value: "$2 dropdown"},
			},
		},

		// Click
		{
			pattern: `(?:i )?(?:click|press|tap)(?: on)? (?:the )?"([^"]+)"(?: (button|link|element|icon|tab))?`,
			action:  model.ActionClick,
			params:  []ParamSpec{{Name: "element", Value: "$1 $2"}},
		},
		{
			pattern: `(?:i )?double[- ]?click(?: on)? (?:the )?"([^"]+)"`,
			action:  model.ActionClick,
			params: []ParamSpec{
				{Name: "element", Value: "$1"},
				{Name: "count", Value: "2"},
			},
		},

		// Text input
		{
			pattern: `(?:i )?(?:enter|type|input|write) "([^"]*)" (?:in|into) (?:the )?"([^"]+)"(?: (field|input|textbox|box))?`,
			action:  model.ActionTypeText,
			params: []ParamSpec{
				{Name: "value", Value: "$1"},
				{Name: "element", Value: "$2 $3"},
			},
		},
		{
			pattern: `(?:i )?fill (?:in )?(?:the )?"([^"]+)"(?: (?:field|input))? with "([^"]*)"`,
			action:  model.ActionTypeText,
			params: []ParamSpec{
				{Name: "value", Value: "$2"},
				{Name: "element", Value: "$1 field"},
			},
		},

		// Checkboxes
		{
			pattern: `(?:i )?(?:check|tick|mark) (?:the )?"([^"]+)"(?: checkbox)?`,
			action:  model.ActionCheck,
			params: []ParamSpec{
				{Name: "element", Value: "$1 checkbox"},
				{Name: "state", Value: "checked"},
			},
		},
		{
			pattern: `(?:i )?(?:uncheck|untick|unmark) (?:the )?"([^"]+)"(?: checkbox)?`,
			action:  model.ActionCheck,
			params: []ParamSpec{
				{Name: "element", Value: "$1 checkbox"},
				{Name: "state", Value: "unchecked"},
			},
		},

		// Assertions
		{
			pattern: `(?:i )?should see (?:the )?"([^"]+)" (button|link|field|input|element|dropdown|checkbox)`,
			action:  model.ActionAssertVisible,
			params:  []ParamSpec{{Name: "element", Value: "$1 $2"}},
		},
		{
			pattern: `(?:i )?should see (?:the )?(?:text )?"([^"]+)"`,
			action:  model.ActionAssertText,
			params:  []ParamSpec{{Name: "text", Value: "$1"}},
		},
		{
			pattern: `the "([^"]+)"(?: (?:field|input|element))? should (?:contain|have value|show) "([^"]*)"`,
			action:  model.ActionAssertText,
			params: []ParamSpec{
				{Name: "element", Value: "$1 field"},
				{Name: "text", Value: "$2"},
			},
		},

		// Waiting
		{
			pattern: `(?:i )?(?:wait|pause|sleep)(?: for)? (\d+) (seconds?|ms|milliseconds?)`,
			action:  model.ActionWait,
			params: []ParamSpec{
				{Name: "duration", Value: "$1"},
				{Name: "unit", Value: "$2"},
			},
		},
		{
			pattern: `(?:i )?wait for the page to load`,
			action:  model.ActionWait,
			params:  []ParamSpec{{Name: "state", Value: "load"}},
		},

		// Screenshots
		{
			pattern: `(?:i )?take a screenshot(?: named "([^"]+)")?`,
			action:  model.ActionScreenshot,
			params:  []ParamSpec{{Name: "name", Value: "$1"}},
		},

		// Saved variables
		{
			pattern: `(?:i )?save "([^"]*)" as "([^"]+)"`,
			action:  model.ActionSaveVariable,
			params: []ParamSpec{
				{Name: "value", Value: "$1"},
				{Name: "name", Value: "$2"},
			},
		},
		{
			pattern: `(?:i )?save the text of (?:the )?"([^"]+)" as "([^"]+)"`,
			action:  model.ActionSaveVariable,
			params: []ParamSpec{
				{Name: "element", Value: "$1"},
				{Name: "name", Value: "$2"},
			},
		},

		// Keyboard
		{
			pattern: `(?:i )?press (?:the )?([\w+]+) key`,
			action:  model.ActionPressKey,
			params:  []ParamSpec{{Name: "key", Value: "$1"}},
		},

		// Mouse
		{
			pattern: `(?:i )?hover over (?:the )?"([^"]+)"`,
			action:  model.ActionHover,
			params:  []ParamSpec{{Name: "element", Value: "$1"}},
		},

		// Scrolling
		{
			pattern: `(?:i )?scroll (up|down|to top|to bottom)`,
			action:  model.ActionScroll,
			params:  []ParamSpec{{Name: "direction", Value: "$1"}},
		},
	}
}
