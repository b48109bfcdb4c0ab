package model

// ActionKind identifies one of the closed set of executable actions a
// compiled step can dispatch to.
type ActionKind string

const (
	ActionNavigate      ActionKind = "navigate"
	ActionClick         ActionKind = "click"
	ActionTypeText      ActionKind = "type"
	ActionSelect        ActionKind = "select"
	ActionCheck         ActionKind = "check"
	ActionAssertText    ActionKind = "assert_text"
	ActionAssertVisible ActionKind = "assert_visible"
	ActionWait          ActionKind = "wait"
	ActionScreenshot    ActionKind = "screenshot"
	ActionSaveVariable  ActionKind = "save_variable"
	ActionPressKey      ActionKind = "press_key"
	ActionHover         ActionKind = "hover"
	ActionScroll        ActionKind = "scroll"
)

var actionKinds = map[ActionKind]struct{}{
	ActionNavigate:      {},
	ActionClick:         {},
	ActionTypeText:      {},
	ActionSelect:        {},
	ActionCheck:         {},
	ActionAssertText:    {},
	ActionAssertVisible: {},
	ActionWait:          {},
	ActionScreenshot:    {},
	ActionSaveVariable:  {},
	ActionPressKey:      {},
	ActionHover:         {},
	ActionScroll:        {},
}

// IsValid reports whether the kind belongs to the closed action set.
func (k ActionKind) IsValid() bool {
	_, ok := actionKinds[k]
	return ok
}

// NeedsTarget reports whether executing the action requires a resolved
// element locator. Navigation, waits, key presses, screenshots, scrolls
// and variable saves operate on the page as a whole.
func (k ActionKind) NeedsTarget() bool {
	switch k {
	case ActionNavigate, ActionWait, ActionScreenshot, ActionSaveVariable, ActionPressKey, ActionScroll:
		return false
	default:
		return true
	}
}
