package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// RoleMembers returns the deduplicated ids of every guild member holding the
// given role. Used to freeze the electorate snapshot when a proposal is
// created without an explicit member list.
func RoleMembers(session *discordgo.Session, guildID, roleID string) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})

	after := ""
	for {
		members, err := session.GuildMembers(guildID, after, 1000)
		if err != nil {
			return nil, fmt.Errorf("list guild members: %w", err)
		}
		if len(members) == 0 {
			break
		}
		for _, member := range members {
			after = member.User.ID
			for _, r := range member.Roles {
				if r != roleID {
					continue
				}
				if _, ok := seen[member.User.ID]; !ok {
					seen[member.User.ID] = struct{}{}
					out = append(out, member.User.ID)
				}
				break
			}
		}
		if len(members) < 1000 {
			break
		}
	}
	return out, nil
}
