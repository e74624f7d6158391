package webserver

import (
	"errors"
	"log"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/stake-plus/council-gov/src/config"
	"github.com/stake-plus/council-gov/src/council"
	"github.com/stake-plus/council-gov/src/discord"
	"github.com/stake-plus/council-gov/src/types"
)

type Proposals struct {
	svc       *council.Service
	cfg       config.Config
	session   *discordgo.Session
	sanitizer *bluemonday.Policy
}

func NewProposals(svc *council.Service, cfg config.Config, session *discordgo.Session) Proposals {
	// Strict sanitizer for proposal descriptions
	sanitizer := bluemonday.StrictPolicy()
	return Proposals{svc: svc, cfg: cfg, session: session, sanitizer: sanitizer}
}

func (p Proposals) Create(c *gin.Context) {
	var req struct {
		GuildID       string   `json:"guildId" binding:"required,max=64"`
		TargetID      string   `json:"targetId" binding:"required,max=64"`
		TargetGroupID string   `json:"targetGroupId" binding:"max=64"`
		Amount        uint64   `json:"amount" binding:"required"`
		Description   string   `json:"description" binding:"max=4000"`
		AttachmentURL string   `json:"attachmentUrl" binding:"omitempty,url,max=512"`
		Electorate    []string `json:"electorate" binding:"max=200"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	req.Description = p.sanitizer.Sanitize(req.Description)
	if !utf8.ValidString(req.Description) {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid characters in description"})
		return
	}

	electorate := req.Electorate
	if len(electorate) == 0 {
		// No explicit electorate: snapshot the council role right now.
		if p.session == nil || p.cfg.CouncilRoleID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"err": "electorate required"})
			return
		}
		members, err := discord.RoleMembers(p.session, req.GuildID, p.cfg.CouncilRoleID)
		if err != nil {
			log.Printf("Failed to snapshot council role for guild %s: %v", req.GuildID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"err": "failed to resolve electorate"})
			return
		}
		electorate = members
	}

	prop, err := p.svc.Create(c, council.CreateParams{
		GuildID:       req.GuildID,
		ProposerID:    c.GetString("member"),
		TargetID:      req.TargetID,
		TargetGroupID: req.TargetGroupID,
		Amount:        req.Amount,
		Description:   req.Description,
		AttachmentURL: req.AttachmentURL,
		Electorate:    electorate,
	})
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusCreated, proposalJSON(prop, nil))
}

func (p Proposals) List(c *gin.Context) {
	props, err := p.svc.Active(c, c.Query("guild"))
	if err != nil {
		abortWith(c, err)
		return
	}
	out := make([]gin.H, 0, len(props))
	for i := range props {
		out = append(out, proposalJSON(&props[i], nil))
	}
	c.JSON(http.StatusOK, out)
}

func (p Proposals) Get(c *gin.Context) {
	prop, err := p.svc.Get(c, c.Param("id"))
	if err != nil {
		abortWith(c, err)
		return
	}
	tally, err := p.svc.Tally(c, prop.ID)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, proposalJSON(prop, &tally))
}

func (p Proposals) Cancel(c *gin.Context) {
	cancelled, err := p.svc.Cancel(c, c.Param("id"))
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": cancelled})
}

func (p Proposals) Export(c *gin.Context) {
	guildID := c.Query("guild")
	if guildID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"err": "guild is required"})
		return
	}
	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "bad start timestamp"})
		return
	}
	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "bad end timestamp"})
		return
	}

	records, err := p.svc.Export(c, guildID, start, end)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func proposalJSON(p *types.Proposal, tally *council.Tally) gin.H {
	out := gin.H{
		"id":          p.ID,
		"guildId":     p.GuildID,
		"proposerId":  p.ProposerID,
		"targetId":    p.TargetID,
		"amount":      p.Amount,
		"description": p.Description,
		"status":      p.Status,
		"snapshotN":   p.SnapshotN,
		"thresholdT":  p.ThresholdT,
		"deadlineAt":  p.DeadlineAt.Format(time.RFC3339),
		"createdAt":   p.CreatedAt.Format(time.RFC3339),
		"updatedAt":   p.UpdatedAt.Format(time.RFC3339),
	}
	if p.TargetGroupID != "" {
		out["targetGroupId"] = p.TargetGroupID
	}
	if p.AttachmentURL != "" {
		out["attachmentUrl"] = p.AttachmentURL
	}
	if p.ExecutionRef != "" {
		out["executionRef"] = p.ExecutionRef
	}
	if p.ExecutionError != "" {
		out["executionError"] = p.ExecutionError
	}
	if tally != nil {
		out["tally"] = tally
	}
	return out
}

func abortWith(c *gin.Context, err error) {
	switch {
	case errors.Is(err, council.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
	case errors.Is(err, council.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"err": err.Error()})
	case errors.Is(err, council.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"err": err.Error()})
	case errors.Is(err, council.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"err": err.Error()})
	default:
		log.Printf("Internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"err": "internal error"})
	}
}
