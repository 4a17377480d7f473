package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vibecall/backend/internal/apperror"
	"vibecall/backend/internal/config"
	"vibecall/backend/internal/models"
)

const (
	eventChannelPrefix = "matchhub:user:"
	banKeyPrefix       = "ban:"
)

type Storage interface {
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	GetProfile(ctx context.Context, userID string) (models.Profile, error)
	UpdateUserReputation(ctx context.Context, userID string, delta int) (int, error)
	BanUser(ctx context.Context, userID string, d time.Duration) error
	IsUserBanned(ctx context.Context, userID string) (bool, error)

	SaveSessionRecord(ctx context.Context, rec *models.SessionRecord) error
	GetSessionRecord(ctx context.Context, sessionID string) (*models.SessionRecord, error)
	SaveMatch(ctx context.Context, m *models.Match) error
	SaveComplaint(ctx context.Context, c *models.Complaint) error
	UpdateUserStats(ctx context.Context, userID string, fn func(*models.UserStats)) error

	ListActiveIcebreakers(ctx context.Context) ([]models.Icebreaker, error)
	SeedIcebreakers(ctx context.Context, texts []string) error

	PublishEvent(ctx context.Context, evt models.Event) error
	SubscribeEvents(ctx context.Context) (<-chan models.Event, error)
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{DB: db, Redis: rdb}
}

// Migrate створює або оновлює таблиці
func (s *Service) Migrate() error {
	return s.DB.AutoMigrate(
		&models.User{},
		&models.SessionRecord{},
		&models.Match{},
		&models.Complaint{},
		&models.UserStats{},
		&models.Icebreaker{},
	)
}

// GetUserByID повертає профіль користувача з PostgreSQL
func (s *Service) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("user " + userID + " not found")
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetProfile повертає атрибути профілю, потрібні для сумісності
func (s *Service) GetProfile(ctx context.Context, userID string) (models.Profile, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return models.Profile{}, err
	}
	return user.Profile(), nil
}

// UpdateUserReputation змінює репутацію на delta (не нижче мінімуму) і повертає нове значення
func (s *Service) UpdateUserReputation(ctx context.Context, userID string, delta int) (int, error) {
	var score int
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Update("reputation_score", gorm.Expr("GREATEST(reputation_score + ?, ?)", delta, config.MinReputation))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperror.NotFound("user " + userID + " not found")
		}
		return tx.Model(&models.User{}).Select("reputation_score").Where("id = ?", userID).Scan(&score).Error
	})
	return score, err
}

// BanUser ставить тимчасовий бан у Redis (швидка перевірка)
func (s *Service) BanUser(ctx context.Context, userID string, d time.Duration) error {
	return s.Redis.Set(ctx, banKeyPrefix+userID, "active", d).Err()
}

// IsUserBanned перевіряє статус бану в Redis
func (s *Service) IsUserBanned(ctx context.Context, userID string) (bool, error) {
	status, err := s.Redis.Get(ctx, banKeyPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return status != "", nil
}

// SaveSessionRecord архівує результат закритої сесії
func (s *Service) SaveSessionRecord(ctx context.Context, rec *models.SessionRecord) error {
	return s.DB.WithContext(ctx).Save(rec).Error
}

func (s *Service) GetSessionRecord(ctx context.Context, sessionID string) (*models.SessionRecord, error) {
	var rec models.SessionRecord
	err := s.DB.WithContext(ctx).Where("session_id = ?", sessionID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("session " + sessionID + " not found")
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// SaveMatch is idempotent per session so a retried escalation never duplicates a match.
func (s *Service) SaveMatch(ctx context.Context, m *models.Match) error {
	return s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "session_id"}}, DoNothing: true}).
		Create(m).Error
}

func (s *Service) SaveComplaint(ctx context.Context, c *models.Complaint) error {
	if c.Status == "" {
		c.Status = "new"
	}
	if err := s.DB.WithContext(ctx).Create(c).Error; err != nil {
		log.Error().Str("module", "storage").Str("session_id", c.SessionID).Err(err).Msg("failed to save complaint")
		return err
	}
	return nil
}

// UpdateUserStats applies fn to the user's stats row under a row lock, creating the row
// on first use.
func (s *Service) UpdateUserStats(ctx context.Context, userID string, fn func(*models.UserStats)) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.UserStats{UserID: userID}).Error; err != nil {
			return err
		}
		var st models.UserStats
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).First(&st).Error; err != nil {
			return err
		}
		fn(&st)
		return tx.Save(&st).Error
	})
}

func (s *Service) ListActiveIcebreakers(ctx context.Context) ([]models.Icebreaker, error) {
	var prompts []models.Icebreaker
	if err := s.DB.WithContext(ctx).Where("active = ?", true).Order("id").Find(&prompts).Error; err != nil {
		return nil, err
	}
	return prompts, nil
}

// SeedIcebreakers додає підказки, яких ще немає в таблиці
func (s *Service) SeedIcebreakers(ctx context.Context, texts []string) error {
	if len(texts) == 0 {
		return nil
	}
	prompts := make([]models.Icebreaker, 0, len(texts))
	for _, t := range texts {
		prompts = append(prompts, models.Icebreaker{Text: t, Active: true})
	}
	return s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "text"}}, DoNothing: true}).
		Create(&prompts).Error
}

// PublishEvent публікує подію в Redis Pub/Sub на канал користувача
func (s *Service) PublishEvent(ctx context.Context, evt models.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return s.Redis.Publish(ctx, eventChannelPrefix+evt.UserID, payload).Err()
}

// SubscribeEvents слухає канали всіх користувачів. Канал закривається разом з ctx.
func (s *Service) SubscribeEvents(ctx context.Context) (<-chan models.Event, error) {
	pubsub := s.Redis.PSubscribe(ctx, eventChannelPrefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe to %s*: %w", eventChannelPrefix, err)
	}

	out := make(chan models.Event, 256)
	go func() {
		defer close(out)
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var evt models.Event
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					log.Warn().Str("module", "storage").Str("channel", msg.Channel).Err(err).Msg("invalid event payload")
					continue
				}
				if evt.UserID == "" {
					evt.UserID = strings.TrimPrefix(msg.Channel, eventChannelPrefix)
				}
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// UnbanUser знімає бан у Redis
func (s *Service) UnbanUser(ctx context.Context, userID string) error {
	return s.Redis.Del(ctx, banKeyPrefix+userID).Err()
}

// ConfirmComplaint позначає скаргу як оброблену і повертає її
func (s *Service) ConfirmComplaint(ctx context.Context, complaintID string) (*models.Complaint, error) {
	var c models.Complaint
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("complaint_id = ?", complaintID).First(&c).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("complaint " + complaintID + " not found")
			}
			return err
		}
		c.Status = "processed"
		return tx.Save(&c).Error
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

var _ Storage = (*Service)(nil)
