package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"vibecall/backend/internal/config"
	"vibecall/backend/internal/icebreaker"
	"vibecall/backend/internal/storage"
)

const usage = `Usage: admin <command> [args]
  migrate
  seed-icebreakers
  ban <user_id> [duration_in_hours]
  unban <user_id>
  confirm-complaint <complaint_id>`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer rdb.Close()

	storageSvc := storage.NewStorageService(db, rdb)
	ctx := context.Background()

	switch command := os.Args[1]; command {
	case "migrate":
		if err := storageSvc.Migrate(); err != nil {
			log.Fatal().Err(err).Msg("migration failed")
		}
		fmt.Println("Migrations applied.")
	case "seed-icebreakers":
		if err := storageSvc.SeedIcebreakers(ctx, icebreaker.DefaultPrompts); err != nil {
			log.Fatal().Err(err).Msg("seeding failed")
		}
		fmt.Printf("Seeded %d icebreakers.\n", len(icebreaker.DefaultPrompts))
	case "ban":
		if len(os.Args) < 3 {
			fmt.Println("Usage: admin ban <user_id> [duration_in_hours]")
			os.Exit(1)
		}
		userID := os.Args[2]
		duration := config.BanDuration
		if len(os.Args) > 3 {
			hours, err := strconv.Atoi(os.Args[3])
			if err != nil || hours <= 0 {
				fmt.Println("Invalid duration. Please provide a positive integer.")
				os.Exit(1)
			}
			duration = time.Duration(hours) * time.Hour
		}
		if err := storageSvc.BanUser(ctx, userID, duration); err != nil {
			log.Fatal().Err(err).Msg("error banning user")
		}
		fmt.Printf("User %s has been banned for %s.\n", userID, duration)
	case "unban":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin unban <user_id>")
			os.Exit(1)
		}
		userID := os.Args[2]
		if err := storageSvc.UnbanUser(ctx, userID); err != nil {
			log.Fatal().Err(err).Msg("error unbanning user")
		}
		fmt.Printf("User %s has been unbanned.\n", userID)
	case "confirm-complaint":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin confirm-complaint <complaint_id>")
			os.Exit(1)
		}
		if err := confirmComplaint(ctx, storageSvc, os.Args[2]); err != nil {
			log.Fatal().Err(err).Msg("error confirming complaint")
		}
		fmt.Printf("Complaint %s has been confirmed.\n", os.Args[2])
	default:
		fmt.Println("Unknown command")
		fmt.Println(usage)
		os.Exit(1)
	}
}

// confirmComplaint rewards the reporter of a complaint a moderator upheld.
func confirmComplaint(ctx context.Context, s *storage.Service, complaintID string) error {
	c, err := s.ConfirmComplaint(ctx, complaintID)
	if err != nil {
		return err
	}
	_, err = s.UpdateUserReputation(ctx, c.ReporterID, config.ConfirmedReportReward)
	return err
}
