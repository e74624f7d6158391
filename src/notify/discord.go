package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stake-plus/council-gov/src/types"
)

// Discord delivers reminders and results as direct messages.
type Discord struct {
	session *discordgo.Session
}

func NewDiscord(session *discordgo.Session) *Discord {
	return &Discord{session: session}
}

func (d *Discord) SendReminder(ctx context.Context, memberID string, p *types.Proposal) error {
	embed := &discordgo.MessageEmbed{
		Title:       "Council vote reminder",
		Description: fmt.Sprintf("You have not voted on the transfer of %d to <@%s> yet.", p.Amount, p.TargetID),
		Color:       0xffcc00,
		Timestamp:   time.Now().Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Proposal %s", p.ID),
		},
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:  "Deadline",
				Value: fmt.Sprintf("<t:%d:R>", p.DeadlineAt.Unix()),
			},
		},
	}
	return d.sendDM(memberID, embed)
}

func (d *Discord) BroadcastResult(ctx context.Context, electorate []string, p *types.Proposal, votes map[string]int16) error {
	embed := d.buildResultEmbed(electorate, p, votes)
	var lastErr error
	for _, memberID := range electorate {
		if err := d.sendDM(memberID, embed); err != nil {
			log.Printf("Failed to DM result of proposal %s to %s: %v", p.ID, memberID, err)
			lastErr = err
		}
	}
	return lastErr
}

func (d *Discord) buildResultEmbed(electorate []string, p *types.Proposal, votes map[string]int16) *discordgo.MessageEmbed {
	var sb strings.Builder
	for _, memberID := range electorate {
		choice, voted := votes[memberID]
		if voted {
			fmt.Fprintf(&sb, "<@%s> — %s\n", memberID, types.ChoiceName(choice))
		} else {
			fmt.Fprintf(&sb, "<@%s> — did not vote\n", memberID)
		}
	}

	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Proposal %s", statusTitle(p.Status)),
		Description: fmt.Sprintf("Transfer of %d to <@%s>", p.Amount, p.TargetID),
		Color:       statusColor(p.Status),
		Timestamp:   time.Now().Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Proposal %s | %d of %d approvals required", p.ID, p.ThresholdT, p.SnapshotN),
		},
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:  "Votes",
				Value: sb.String(),
			},
		},
	}
}

func (d *Discord) sendDM(memberID string, embed *discordgo.MessageEmbed) error {
	channel, err := d.session.UserChannelCreate(memberID)
	if err != nil {
		return fmt.Errorf("open DM channel: %w", err)
	}
	_, err = d.session.ChannelMessageSendEmbed(channel.ID, embed)
	return err
}

func statusTitle(status string) string {
	switch status {
	case types.StatusExecuted:
		return "approved and executed"
	case types.StatusExecutionFailed:
		return "approved, execution failed"
	case types.StatusRejected:
		return "rejected"
	case types.StatusTimedOut:
		return "timed out"
	case types.StatusCancelled:
		return "cancelled"
	}
	return strings.ToLower(status)
}

func statusColor(status string) int {
	switch status {
	case types.StatusExecuted:
		return 0x00cc66
	case types.StatusRejected, types.StatusTimedOut, types.StatusExecutionFailed:
		return 0xcc3300
	}
	return 0x0099ff
}
