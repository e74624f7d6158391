package webserver

import (
	"github.com/bwmarrin/discordgo"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stake-plus/council-gov/src/config"
	"github.com/stake-plus/council-gov/src/council"
)

func attachRoutes(r *gin.Engine, cfg config.Config, svc *council.Service, rdb *redis.Client, session *discordgo.Session) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	authH := NewAuth([]byte(cfg.JWTSecret), cfg.ServiceToken)
	propH := NewProposals(svc, cfg, session)
	voteH := NewVotes(svc, rdb, cfg.VoteRateLimit)

	v1 := r.Group("/v1")
	{
		v1.POST("/auth/token", authH.Token)

		secured := v1.Use(JWTMiddleware([]byte(cfg.JWTSecret)))
		secured.POST("/proposals", propH.Create)
		secured.GET("/proposals", propH.List)
		secured.GET("/proposals/:id", propH.Get)
		secured.DELETE("/proposals/:id", propH.Cancel)
		secured.POST("/proposals/:id/votes", voteH.Cast)
		secured.GET("/export", propH.Export)
	}
}
