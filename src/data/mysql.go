package data

import (
	"log"

	"github.com/stake-plus/council-gov/src/types"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func MustMySQL(dsn string) *gorm.DB {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("mysql: %v", err)
	}
	if err := db.AutoMigrate(
		&types.Setting{},
		&types.Proposal{},
		&types.ProposalVoter{},
		&types.ProposalVote{},
	); err != nil {
		log.Fatalf("mysql migrate: %v", err)
	}
	return db
}
