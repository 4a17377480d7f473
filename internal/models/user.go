package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq" // Необхідний для pq.StringArray
	"gorm.io/gorm"
)

// User представляє профіль користувача, яким володіє зовнішній сервіс профілів.
// Двигун лише читає вік і стать для перевірки сумісності та змінює репутацію після скарг.
type User struct {
	ID              string         `gorm:"primaryKey" json:"id"` // Анонімний UUID
	Age             int            // Вік користувача
	Gender          string         // Стать користувача
	Interests       pq.StringArray `gorm:"type:text[]"` // Для зберігання тегів
	ReputationScore int            `gorm:"default:1000"`
}

// BeforeCreate це хук GORM, який викликається перед створенням запису.
// Він генерує новий UUID для користувача, якщо ID ще не встановлено.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}

// Profile returns the compatibility-relevant part of the profile.
func (u *User) Profile() Profile {
	return Profile{Age: u.Age, Gender: Gender(u.Gender)}
}
