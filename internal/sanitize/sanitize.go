// Package sanitize rewrites platform entity tokens in command text into
// speakable words before synthesis.
//
// Discord messages carry mentions and emoji as markup tokens — <@id>,
// <@!id>, <#id>, <@&id>, <a:name:id>, <:name:id> — which would otherwise be
// read out loud verbatim. The [Sanitizer] substitutes each with its
// human-readable name, resolved through a narrow [Resolver] so the package
// stays independent of the platform SDK.
package sanitize

import (
	"regexp"
	"strings"
)

// Resolver answers name lookups for entity ids. Implementations typically
// wrap the platform client's state cache. A lookup that cannot be resolved
// returns ok=false and the sanitiser degrades to a neutral word.
type Resolver interface {
	MemberName(guildID, userID string) (string, bool)
	ChannelName(channelID string) (string, bool)
	RoleName(guildID, roleID string) (string, bool)
}

var (
	memberPattern  = regexp.MustCompile(`<@!?(\d+)>`)
	channelPattern = regexp.MustCompile(`<#(\d+)>`)
	rolePattern    = regexp.MustCompile(`<@&(\d+)>`)
	emojiPattern   = regexp.MustCompile(`<a?:([A-Za-z0-9_~]+):\d+>`)
)

// Sanitizer substitutes entity tokens using a [Resolver].
// The zero value is not usable; construct with [New].
type Sanitizer struct {
	resolver Resolver
}

// New creates a Sanitizer backed by resolver.
func New(resolver Resolver) *Sanitizer {
	return &Sanitizer{resolver: resolver}
}

// Clean rewrites every entity token in text for the given guild. Unresolvable
// mentions become "someone", channels and roles keep a generic word, emoji
// fall back to their embedded name with underscores spaced out.
func (s *Sanitizer) Clean(guildID, text string) string {
	text = memberPattern.ReplaceAllStringFunc(text, func(tok string) string {
		id := memberPattern.FindStringSubmatch(tok)[1]
		if name, ok := s.resolver.MemberName(guildID, id); ok {
			return name
		}
		return "someone"
	})
	text = channelPattern.ReplaceAllStringFunc(text, func(tok string) string {
		id := channelPattern.FindStringSubmatch(tok)[1]
		if name, ok := s.resolver.ChannelName(id); ok {
			return name
		}
		return "a channel"
	})
	text = rolePattern.ReplaceAllStringFunc(text, func(tok string) string {
		id := rolePattern.FindStringSubmatch(tok)[1]
		if name, ok := s.resolver.RoleName(guildID, id); ok {
			return name
		}
		return "a role"
	})
	text = emojiPattern.ReplaceAllStringFunc(text, func(tok string) string {
		name := emojiPattern.FindStringSubmatch(tok)[1]
		return strings.ReplaceAll(name, "_", " ")
	})
	return text
}
