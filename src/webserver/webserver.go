package webserver

import (
	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stake-plus/council-gov/src/config"
	"github.com/stake-plus/council-gov/src/council"
)

func New(cfg config.Config, svc *council.Service, rdb *redis.Client, session *discordgo.Session) *gin.Engine {
	g := gin.New()
	g.Use(gin.Logger(), gin.Recovery())
	attachRoutes(g, cfg, svc, rdb, session)
	return g
}
