package model

import (
	"time"
)

type Post struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Title      string    `gorm:"type:varchar(100);not null" json:"title"`
	Body       string    `gorm:"type:text;not null" json:"body"`
	AuthorID   uint      `gorm:"not null;index" json:"author"`
	Likes      int       `gorm:"not null;default:0" json:"likes"`
	ViewsCount int       `gorm:"not null;default:0" json:"views_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Author   User      `gorm:"foreignKey:AuthorID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
	SubPosts []SubPost `gorm:"foreignKey:PostID;references:ID;constraint:OnDelete:CASCADE" json:"subposts"`

	// Filled on request when the client asks for rendered markdown
	BodyHTML string `gorm:"-" json:"body_html,omitempty"`
}

// TableName specifies the table name
func (Post) TableName() string {
	return "posts"
}
