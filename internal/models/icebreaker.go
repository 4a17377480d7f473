package models

// Icebreaker is a conversation-starting prompt. Only active prompts are handed out.
type Icebreaker struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	Text   string `gorm:"type:text;not null;uniqueIndex" json:"text"`
	Active bool   `gorm:"default:true" json:"-"`
}
