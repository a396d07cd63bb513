package model

import (
	"time"
)

type View struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_view_user_post" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_view_user_post;index" json:"post_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relationships
	User User `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
	Post Post `gorm:"foreignKey:PostID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name
func (View) TableName() string {
	return "views"
}

// AllModels lists every model in migration order
func AllModels() []interface{} {
	return []interface{}{&User{}, &Post{}, &SubPost{}, &Like{}, &View{}}
}
