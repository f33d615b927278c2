// Package cachetag derives cache invalidation tags from entity ids.
//
// Tags are plain strings computed on demand; there is no registry. Each
// mutation helper returns the complete, sorted set of tags whose views can
// observe that mutation.
package cachetag

import (
	"sort"
	"strings"

	"github.com/xxxsen/tribute/internal/model"
)

type Tag string

type Freshness int

const (
	// FreshnessImmediate views are never served after invalidation.
	FreshnessImmediate Freshness = iota
	// FreshnessMax views may be served stale for a bounded window.
	FreshnessMax
)

func (f Freshness) String() string {
	if f == FreshnessMax {
		return "max"
	}
	return "immediate"
}

func ParseFreshness(s string) Freshness {
	if s == "max" {
		return FreshnessMax
	}
	return FreshnessImmediate
}

const (
	prefixComments           = "comments:document:"
	prefixEntryShareLinks    = "share-links:entry:"
	prefixDocumentShareLinks = "share-links:document:"
	prefixImageShareLinks    = "share-links:image:"
	prefixEntryImages        = "images:entry:"
)

func Comments(documentID string) Tag {
	return Tag(prefixComments + documentID)
}

func EntryShareLinks(entryID string) Tag {
	return Tag(prefixEntryShareLinks + entryID)
}

func DocumentShareLinks(documentID string) Tag {
	return Tag(prefixDocumentShareLinks + documentID)
}

func ImageShareLinks(imageID string) Tag {
	return Tag(prefixImageShareLinks + imageID)
}

func EntryImages(entryID string) Tag {
	return Tag(prefixEntryImages + entryID)
}

func ResourceShareLinks(resourceType model.ResourceType, resourceID string) Tag {
	if resourceType == model.ResourceImage {
		return ImageShareLinks(resourceID)
	}
	return DocumentShareLinks(resourceID)
}

// Freshness returns the class of the view family the tag belongs to.
// Gallery style listings tolerate staleness, access control views do not.
func (t Tag) Freshness() Freshness {
	if strings.HasPrefix(string(t), prefixEntryImages) {
		return FreshnessMax
	}
	return FreshnessImmediate
}

func (t Tag) String() string {
	return string(t)
}

func ForComment(documentID string) []Tag {
	return build(Comments(documentID))
}

// ForShareLink covers every listing a share link appears in.
func ForShareLink(link *model.ShareLink) []Tag {
	if link == nil {
		return nil
	}
	return build(
		EntryShareLinks(link.EntryID),
		ResourceShareLinks(link.ResourceType, link.ResourceID),
	)
}

// ForDocument covers views derived from a document's own state, such as the
// effective permission shown next to its share links.
func ForDocument(doc *model.Document) []Tag {
	if doc == nil {
		return nil
	}
	return build(
		EntryShareLinks(doc.EntryID),
		DocumentShareLinks(doc.ID),
		Comments(doc.ID),
	)
}

func ForImage(img *model.Image) []Tag {
	if img == nil {
		return nil
	}
	return build(
		EntryImages(img.EntryID),
		EntryShareLinks(img.EntryID),
		ImageShareLinks(img.ID),
	)
}

// Group splits tags by freshness class, preserving order.
func Group(tags []Tag) map[Freshness][]Tag {
	out := make(map[Freshness][]Tag, 2)
	for _, tag := range tags {
		class := tag.Freshness()
		out[class] = append(out[class], tag)
	}
	return out
}

func build(tags ...Tag) []Tag {
	seen := make(map[Tag]struct{}, len(tags))
	out := make([]Tag, 0, len(tags))
	for _, tag := range tags {
		if strings.HasSuffix(string(tag), ":") {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
