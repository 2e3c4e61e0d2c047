package discord

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/bwmarrin/discordgo"
)

func speechConfigDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "speech_config",
		Description: "Pick the voice used for your messages",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:         discordgo.ApplicationCommandOptionString,
				Name:         "voice",
				Description:  "The voice to use",
				Required:     true,
				Autocomplete: true,
			},
		},
	}
}

// handleSpeechConfig stores the caller's voice choice. Unknown voices get the
// closest known voice suggested instead.
func (c *Commands) handleSpeechConfig(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	user := interactionUser(i)
	if user == nil {
		RespondEphemeral(s, i, "I couldn't figure out who sent that.")
		return false
	}
	if len(c.cfg.Voices) == 0 {
		RespondEphemeral(s, i, "This instance only has one voice, there is nothing to configure.")
		return false
	}

	voiceOpt := option(i.ApplicationCommandData(), "voice")
	if voiceOpt == nil {
		RespondEphemeral(s, i, "Please pick a voice.")
		return false
	}
	choice := voiceOpt.StringValue()

	if !c.knownVoice(choice) {
		msg := fmt.Sprintf("I don't know the voice %q.", choice)
		if suggestion := c.closestVoice(choice); suggestion != "" {
			msg += fmt.Sprintf(" Did you mean %q?", suggestion)
		}
		RespondEphemeral(s, i, msg)
		return false
	}

	c.setVoice(user.ID, choice)
	RespondEphemeral(s, i, fmt.Sprintf("Your messages will now be read with the voice %q.", choice))
	return true
}

func (c *Commands) knownVoice(name string) bool {
	for _, v := range c.cfg.Voices {
		if v == name {
			return true
		}
	}
	return false
}

// closestVoice returns the configured voice with the smallest edit distance
// to name, or empty when no voices are configured.
func (c *Commands) closestVoice(name string) string {
	best := ""
	bestDist := -1
	for _, v := range c.cfg.Voices {
		d := matchr.Levenshtein(strings.ToLower(name), strings.ToLower(v))
		if bestDist < 0 || d < bestDist {
			best, bestDist = v, d
		}
	}
	return best
}

// completeVoice serves autocomplete for the voice option: prefix matches
// first, then everything else alphabetically.
func (c *Commands) completeVoice(s *discordgo.Session, i *discordgo.InteractionCreate) {
	typed := ""
	if opt := option(i.ApplicationCommandData(), "voice"); opt != nil {
		typed = strings.ToLower(opt.StringValue())
	}

	voices := make([]string, len(c.cfg.Voices))
	copy(voices, c.cfg.Voices)
	sort.Slice(voices, func(a, b int) bool {
		pa := strings.HasPrefix(strings.ToLower(voices[a]), typed)
		pb := strings.HasPrefix(strings.ToLower(voices[b]), typed)
		if pa != pb {
			return pa
		}
		return voices[a] < voices[b]
	})

	// Discord caps autocomplete responses at 25 choices.
	if len(voices) > 25 {
		voices = voices[:25]
	}
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(voices))
	for _, v := range voices {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: v, Value: v})
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	})
	if err != nil {
		slog.Warn("discord: voice autocomplete response failed", "error", err)
	}
}
