package treasury

import "fmt"

// ResolveAccount is the canonical target-account resolver. Transfers land on
// the guild treasury account unless the proposal is tagged for a group, in
// which case they route to that group's account. All callers go through this
// one function.
func ResolveAccount(guildID, targetGroupID string) string {
	if targetGroupID != "" {
		return fmt.Sprintf("group:%s:%s", guildID, targetGroupID)
	}
	return fmt.Sprintf("guild:%s", guildID)
}
