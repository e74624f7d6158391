package webserver

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stake-plus/council-gov/src/council"
	"github.com/stake-plus/council-gov/src/data"
	"github.com/stake-plus/council-gov/src/types"
)

type Votes struct {
	svc   *council.Service
	rdb   *redis.Client
	limit time.Duration
}

func NewVotes(svc *council.Service, rdb *redis.Client, limit time.Duration) Votes {
	return Votes{svc: svc, rdb: rdb, limit: limit}
}

func (v Votes) Cast(c *gin.Context) {
	var req struct {
		Choice string `json:"choice" binding:"required,oneof=approve reject abstain"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	memberID := c.GetString("member")
	if v.rdb != nil && v.limit > 0 {
		ok, err := data.AllowVote(c, v.rdb, memberID, v.limit)
		if err != nil {
			log.Printf("Vote rate limit check for %s: %v", memberID, err)
		} else if !ok {
			c.JSON(http.StatusTooManyRequests, gin.H{"err": "slow down"})
			return
		}
	}

	choiceMap := map[string]int16{
		"approve": types.ChoiceApprove,
		"reject":  types.ChoiceReject,
		"abstain": types.ChoiceAbstain,
	}

	res, err := v.svc.Vote(c, c.Param("id"), memberID, choiceMap[req.Choice])
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"status": res.Proposal.Status,
		"tally":  res.Tally,
	})
}
