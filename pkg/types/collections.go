package types

import "regexp"

// Well-known collection names.
const (
	CollectionProjects = "projects"
	CollectionVisual   = "visual"
	CollectionClip     = "clip"
	CollectionCrew     = "crew"
)

// ConfigCollection holds singleton documents such as the profile.
const ConfigCollection = "config"

// ProfilePath is the location of the singleton ProfileConfig document.
var ProfilePath = Path{Collection: ConfigCollection, ID: "profile"}

// StandardCollections lists the collections rendered by the site.
var StandardCollections = []string{
	CollectionProjects,
	CollectionVisual,
	CollectionClip,
	CollectionCrew,
}

var collectionNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// ValidateCollection checks that name can be used as an item collection.
// The config collection is reserved for singleton documents.
func ValidateCollection(name string) error {
	if name == ConfigCollection || !collectionNamePattern.MatchString(name) {
		return ErrInvalidCollection
	}
	return nil
}
