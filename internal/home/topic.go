// Package home builds the light hierarchy of a home from its spec and owns the
// single-writer access path to node configuration.
package home

import (
	"strings"

	"github.com/dokzlo13/homebase/internal/lighting"
)

// RootTopic addresses the whole home.
const RootTopic lighting.Topic = "home"

const sep = "/"

// ForHome returns the topic of the home.
func ForHome() lighting.Topic {
	return RootTopic
}

// ForRoom returns the topic of a room.
func ForRoom(room string) lighting.Topic {
	return join(string(RootTopic), slug(room))
}

// ForGroup returns the topic of a group nested in a room along path.
func ForGroup(room string, path ...string) lighting.Topic {
	parts := []string{string(RootTopic), slug(room)}
	for _, p := range path {
		parts = append(parts, slug(p))
	}
	return join(parts...)
}

// ForDevice returns the topic of a light inside the group at path.
func ForDevice(room string, path []string, name string) lighting.Topic {
	return join(string(ForGroup(room, path...)), slug(name))
}

// ParseTopic normalizes a user supplied topic. Surrounding slashes are
// dropped and the "home" prefix is added when missing.
func ParseTopic(raw string) lighting.Topic {
	raw = strings.Trim(strings.TrimSpace(raw), sep)
	if raw == "" || raw == string(RootTopic) {
		return RootTopic
	}
	if !strings.HasPrefix(raw, string(RootTopic)+sep) {
		raw = string(RootTopic) + sep + raw
	}
	parts := strings.Split(raw, sep)
	for i, p := range parts {
		parts[i] = slug(p)
	}
	return join(parts...)
}

func join(parts ...string) lighting.Topic {
	return lighting.Topic(strings.Join(parts, sep))
}

// slug lowercases a name and replaces whitespace and separators with '_'.
func slug(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '/':
			return '_'
		}
		return r
	}, name)
}
