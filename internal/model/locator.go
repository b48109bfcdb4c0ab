package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ResolvedBy records which cascade stage produced a locator.
type ResolvedBy string

const (
	ResolvedByCache     ResolvedBy = "cache"
	ResolvedByHeuristic ResolvedBy = "heuristic"
	ResolvedByAI        ResolvedBy = "ai"
)

// PageFingerprint identifies a page's rendered state: its URL plus a hash
// of the page content. Cache entries are scoped to one fingerprint so the
// same descriptor can resolve differently per page state.
type PageFingerprint struct {
	URL  string `json:"url"`
	Hash string `json:"hash"`
}

// NewPageFingerprint derives a fingerprint from a URL and raw page
// content (typically the serialized accessibility snapshot).
func NewPageFingerprint(url string, content []byte) PageFingerprint {
	sum := sha256.Sum256(content)
	return PageFingerprint{URL: url, Hash: hex.EncodeToString(sum[:8])}
}

// Key returns the fingerprint's stable string form.
func (f PageFingerprint) Key() string {
	return f.URL + "#" + f.Hash
}

// IsZero reports whether the fingerprint has not been computed yet.
func (f PageFingerprint) IsZero() bool {
	return f.URL == "" && f.Hash == ""
}

// Point is a page coordinate in CSS pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BoundingBox is an element's rectangle in page coordinates.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns the box surface in square pixels.
func (b BoundingBox) Area() float64 {
	return b.Width * b.Height
}

// Center returns the box midpoint, the coordinate actions are aimed at.
func (b BoundingBox) Center() Point {
	return Point{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// ElementLocator is a concrete, re-resolvable reference to one on-screen
// element. Either Selector or Coordinates is set; AI resolutions carry
// coordinates only.
type ElementLocator struct {
	Selector    string       `json:"selector,omitempty"`
	Coordinates *Point       `json:"coordinates,omitempty"`
	Confidence  float64      `json:"confidence"`
	ResolvedBy  ResolvedBy   `json:"resolved_by"`
	Box         *BoundingBox `json:"box,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

// String renders the locator target for logs and error messages.
func (l ElementLocator) String() string {
	if l.Selector != "" {
		return l.Selector
	}
	if l.Coordinates != nil {
		return fmt.Sprintf("(%.0f,%.0f)", l.Coordinates.X, l.Coordinates.Y)
	}
	return "<empty>"
}
