package sanitize_test

import (
	"testing"

	"github.com/oratorbot/orator/internal/sanitize"
)

// staticResolver resolves names from fixed maps.
type staticResolver struct {
	members  map[string]string
	channels map[string]string
	roles    map[string]string
}

func (r *staticResolver) MemberName(_, userID string) (string, bool) {
	name, ok := r.members[userID]
	return name, ok
}

func (r *staticResolver) ChannelName(channelID string) (string, bool) {
	name, ok := r.channels[channelID]
	return name, ok
}

func (r *staticResolver) RoleName(_, roleID string) (string, bool) {
	name, ok := r.roles[roleID]
	return name, ok
}

func TestClean(t *testing.T) {
	t.Parallel()

	s := sanitize.New(&staticResolver{
		members:  map[string]string{"111": "Ada", "222": "Brin"},
		channels: map[string]string{"333": "general"},
		roles:    map[string]string{"444": "Moderators"},
	})

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "hello there", "hello there"},
		{"member mention", "hi <@111>!", "hi Ada!"},
		{"nickname mention form", "hi <@!222>", "hi Brin"},
		{"unknown member", "hi <@999>", "hi someone"},
		{"channel", "see <#333>", "see general"},
		{"unknown channel", "see <#000>", "see a channel"},
		{"role", "ping <@&444>", "ping Moderators"},
		{"unknown role", "ping <@&000>", "ping a role"},
		{"emoji", "nice <:thumbs_up:123>", "nice thumbs up"},
		{"animated emoji", "party <a:party_parrot:55>", "party party parrot"},
		{"mixed", "<@111> in <#333> <:wave:9>", "Ada in general wave"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := s.Clean("guild-1", tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
