package resolver

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/intentest/intentest/internal/browser"
	"github.com/intentest/intentest/internal/cache"
	"github.com/intentest/intentest/internal/detect"
	"github.com/intentest/intentest/internal/logger"
	"github.com/intentest/intentest/internal/model"
	"github.com/intentest/intentest/pkg/errors"
)

// Match ranks for the heuristic stage, highest first. A candidate wins
// only when it is the sole node at the best rank; ambiguity falls
// through to detection.
const (
	rankExactText   = 5
	rankLabel       = 4
	rankPlaceholder = 3
	rankRole        = 2
	rankSubstring   = 1
)

var heuristicConfidence = map[int]float64{
	rankExactText:   1.0,
	rankLabel:       0.9,
	rankPlaceholder: 0.8,
	rankRole:        0.6,
	rankSubstring:   0.5,
}

// Resolver turns a natural-language element descriptor into a concrete
// locator using a three-stage cascade: cached locator, accessibility
// heuristics, then visual detection.
type Resolver struct {
	cache     *cache.LocatorCache
	detector  detect.Detector
	classes   []string
	threshold float64
	log       *logger.Logger
}

// New creates a resolver. classes is the detection vocabulary forwarded
// to the AI stage; threshold is the minimum detection confidence.
func New(locators *cache.LocatorCache, detector detect.Detector, classes []string, threshold float64, log *logger.Logger) *Resolver {
	return &Resolver{
		cache:     locators,
		detector:  detector,
		classes:   classes,
		threshold: threshold,
		log:       log,
	}
}

// Resolve locates the element named by descriptor on the session's
// current page. bypassCache skips the cache lookup (retries use it so a
// stale entry cannot fail the same step twice); successful heuristic and
// detection resolutions are still written through. The snapshot taken
// for resolution is returned so callers can reuse its fingerprint.
func (r *Resolver) Resolve(ctx context.Context, session browser.Session, descriptor string, bypassCache bool) (model.ElementLocator, *browser.Snapshot, error) {
	snapshot, err := session.Snapshot(ctx)
	if err != nil {
		return model.ElementLocator{}, nil, errors.NewElementNotFoundError(descriptor, "failed to capture page snapshot: "+err.Error())
	}
	fp := snapshot.Fingerprint()

	if !bypassCache {
		if locator, ok := r.fromCache(ctx, session, fp, descriptor); ok {
			return locator, snapshot, nil
		}
	}

	if locator, ok := r.fromHeuristics(snapshot, descriptor); ok {
		r.cache.Put(fp, descriptor, locator)
		return locator, snapshot, nil
	}

	locator, err := r.fromDetection(ctx, snapshot, descriptor)
	if err != nil {
		return model.ElementLocator{}, snapshot, err
	}
	r.cache.Put(fp, descriptor, locator)
	return locator, snapshot, nil
}

// Evict drops the cache entry for descriptor on the given page state.
// Callers use it when an action fails against a cache-resolved locator.
func (r *Resolver) Evict(fp model.PageFingerprint, descriptor string) {
	r.cache.Evict(fp, descriptor)
}

// fromCache returns a cached locator after re-validating that its
// selector still resolves on the live page. Validation failures evict
// the entry and read as a miss; they never surface to the caller.
func (r *Resolver) fromCache(ctx context.Context, session browser.Session, fp model.PageFingerprint, descriptor string) (model.ElementLocator, bool) {
	locator, ok := r.cache.Get(fp, descriptor)
	if !ok {
		return model.ElementLocator{}, false
	}

	if locator.Selector != "" {
		exists, err := session.Exists(ctx, locator.Selector)
		if err != nil || !exists {
			verr := errors.NewCacheValidationError(fp.Key()+"/"+descriptor, err)
			r.log.WithFields(map[string]any{
				"descriptor": descriptor,
				"selector":   locator.Selector,
			}).Debug(verr.Error())
			r.cache.Evict(fp, descriptor)
			return model.ElementLocator{}, false
		}
	}

	locator.ResolvedBy = model.ResolvedByCache
	return locator, true
}

type candidate struct {
	node browser.Node
	rank int
}

// fromHeuristics scans the accessible snapshot for a node matching the
// descriptor by text, label, placeholder, role, or substring.
func (r *Resolver) fromHeuristics(snapshot *browser.Snapshot, descriptor string) (model.ElementLocator, bool) {
	want := cache.Normalize(descriptor)
	if want == "" {
		return model.ElementLocator{}, false
	}

	best := 0
	var matches []candidate
	for _, node := range snapshot.Nodes {
		if !node.Visible {
			continue
		}
		rank := rankNode(node, want)
		if rank == 0 || rank < best {
			continue
		}
		if rank > best {
			best = rank
			matches = matches[:0]
		}
		matches = append(matches, candidate{node: node, rank: rank})
	}

	// No match, or the best rank is ambiguous: let detection decide.
	if len(matches) != 1 {
		return model.ElementLocator{}, false
	}

	hit := matches[0]
	box := hit.node.Box
	center := box.Center()
	return model.ElementLocator{
		Selector:    hit.node.Selector,
		Coordinates: &center,
		Confidence:  heuristicConfidence[hit.rank],
		ResolvedBy:  model.ResolvedByHeuristic,
		Box:         &box,
		Timestamp:   time.Now(),
	}, true
}

func rankNode(node browser.Node, want string) int {
	text := cache.Normalize(node.Text)
	label := cache.Normalize(node.Label)
	placeholder := cache.Normalize(node.Placeholder)

	switch {
	case text == want:
		return rankExactText
	case label == want:
		return rankLabel
	case placeholder == want:
		return rankPlaceholder
	case node.Role != "" && strings.EqualFold(node.Role, want):
		return rankRole
	case text != "" && strings.Contains(text, want),
		label != "" && strings.Contains(label, want):
		return rankSubstring
	}
	return 0
}

// fromDetection asks the detection model for candidates of the class
// implied by the descriptor and picks the most confident one. Ties go
// to the smaller bounding box, then to reading order.
func (r *Resolver) fromDetection(ctx context.Context, snapshot *browser.Snapshot, descriptor string) (model.ElementLocator, error) {
	if len(snapshot.Screenshot) == 0 {
		return model.ElementLocator{}, errors.NewElementNotFoundError(descriptor, "no screenshot available for detection")
	}

	detections, err := r.detector.Detect(ctx, snapshot.Screenshot, r.classes)
	if err != nil {
		return model.ElementLocator{}, errors.NewElementNotFoundError(descriptor, "detection failed: "+err.Error())
	}

	class := inferClass(descriptor)
	var eligible []detect.Detection
	for _, d := range detections {
		if d.Confidence < r.threshold {
			continue
		}
		if class != "" && d.Label != class {
			continue
		}
		eligible = append(eligible, d)
	}
	if len(eligible) == 0 {
		return model.ElementLocator{}, errors.NewElementNotFoundError(descriptor, "no detection above confidence threshold")
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if aa, ba := a.Box.Area(), b.Box.Area(); aa != ba {
			return aa < ba
		}
		if a.Box.Y != b.Box.Y {
			return a.Box.Y < b.Box.Y
		}
		return a.Box.X < b.Box.X
	})

	hit := eligible[0]
	box := hit.Box
	center := box.Center()
	return model.ElementLocator{
		Coordinates: &center,
		Confidence:  hit.Confidence,
		ResolvedBy:  model.ResolvedByAI,
		Box:         &box,
		Timestamp:   time.Now(),
	}, nil
}

// inferClass maps descriptor vocabulary to a detection class so "the
// Submit button" only considers button detections.
func inferClass(descriptor string) string {
	d := strings.ToLower(descriptor)
	for _, m := range []struct {
		word  string
		class string
	}{
		{"button", "button"},
		{"link", "link"},
		{"checkbox", "checkbox"},
		{"radio", "radio"},
		{"dropdown", "dropdown"},
		{"select", "dropdown"},
		{"tab", "tab"},
		{"image", "image"},
		{"icon", "image"},
		{"field", "input"},
		{"input", "input"},
		{"textbox", "input"},
	} {
		if strings.Contains(d, m.word) {
			return m.class
		}
	}
	return ""
}
