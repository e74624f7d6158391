package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stake-plus/council-gov/src/config"
	"github.com/stake-plus/council-gov/src/council"
	"github.com/stake-plus/council-gov/src/data"
	"github.com/stake-plus/council-gov/src/notify"
	"github.com/stake-plus/council-gov/src/scheduler"
	"github.com/stake-plus/council-gov/src/store"
	"github.com/stake-plus/council-gov/src/treasury"
	"github.com/stake-plus/council-gov/src/webserver"
)

func main() {
	// Connect to database first
	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "council:council@tcp(127.0.0.1:3306)/council"
	}
	db := data.MustMySQL(mysqlDSN)

	cfg := config.Load(db)
	rdb := data.MustRedis(cfg.RedisURL)

	// Discord session for reminders, result broadcasts and role snapshots
	var session *discordgo.Session
	if cfg.Token != "" {
		dg, err := discordgo.New("Bot " + cfg.Token)
		if err != nil {
			log.Fatalf("discord: %v", err)
		}
		dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers
		if err := dg.Open(); err != nil {
			log.Fatalf("discord open: %v", err)
		}
		defer dg.Close()
		session = dg
	} else {
		log.Printf("DISCORD_TOKEN not set; reminders and result broadcasts disabled")
	}

	proposals := store.NewMySQL(db)
	svc := council.NewService(council.ServiceConfig{
		Store:    proposals,
		Executor: treasury.NewClient(cfg.TreasuryURL, cfg.TreasuryToken),
		Redis:    rdb,
		Window:   cfg.VotingWindow,
	})

	ctx, cancel := context.WithCancel(context.Background())

	var notifier notify.Notifier = notify.Noop{}
	if session != nil {
		notifier = notify.NewDiscord(session)
	}

	sched := scheduler.New(scheduler.Config{
		Service:  svc,
		Store:    proposals,
		Notifier: notifier,
		Interval: cfg.SchedulerInterval,
		Lead:     cfg.ReminderLead,
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Start(ctx)
	}()

	router := webserver.New(cfg, svc, rdb, session)
	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http: %v", err)
		}
	}()

	log.Printf("Council governance API listening on %s", cfg.Port)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	cancel()
	wg.Wait()

	shutCtx, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()
	_ = httpSrv.Shutdown(shutCtx)
}
