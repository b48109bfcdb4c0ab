package browser

import (
	"context"
	"encoding/json"

	"github.com/intentest/intentest/internal/model"
)

// Node is one interactable element from a page snapshot, described by the
// accessible attributes the heuristic resolver ranks on.
type Node struct {
	Selector    string            `json:"selector"`
	Tag         string            `json:"tag"`
	Role        string            `json:"role,omitempty"`
	Text        string            `json:"text,omitempty"`
	Label       string            `json:"label,omitempty"`
	Placeholder string            `json:"placeholder,omitempty"`
	Visible     bool              `json:"visible"`
	Box         model.BoundingBox `json:"box"`
}

// Snapshot is the page's visual and accessible state at one instant.
type Snapshot struct {
	URL        string
	Screenshot []byte
	Nodes      []Node
}

// Fingerprint derives the page-state identity cache entries are scoped
// to. Two snapshots of the same URL with different accessible structure
// produce different fingerprints.
func (s *Snapshot) Fingerprint() model.PageFingerprint {
	content, err := json.Marshal(s.Nodes)
	if err != nil {
		content = []byte(s.URL)
	}
	return model.NewPageFingerprint(s.URL, content)
}

// Session is one isolated browser session. Each scheduler worker owns
// exactly one; sessions are never shared across workers.
type Session interface {
	// Navigate loads the URL and waits for the document body.
	Navigate(ctx context.Context, url string) error

	// Act performs the action against the locator's selector or
	// coordinates. value carries the action payload (text to type,
	// option to select, key to press).
	Act(ctx context.Context, action model.ActionKind, locator model.ElementLocator, value string) error

	// Text reads the visible text of the located element.
	Text(ctx context.Context, locator model.ElementLocator) (string, error)

	// Exists reports whether the selector currently resolves on the
	// page. Used to cheaply re-validate cached locators.
	Exists(ctx context.Context, selector string) (bool, error)

	// Snapshot captures a screenshot plus the accessible structure of
	// the current page. Read-only with respect to page state.
	Snapshot(ctx context.Context) (*Snapshot, error)

	// CurrentURL returns the page's current location.
	CurrentURL(ctx context.Context) (string, error)

	// Close releases the session and its browser resources.
	Close() error
}

// Factory creates isolated sessions, one per scheduler worker. A worker
// re-invokes the factory after an unrecoverable session crash.
type Factory interface {
	NewSession(ctx context.Context) (Session, error)
}
