package model

import (
	"time"
)

// SubPost is a child content item owned by exactly one Post
type SubPost struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"type:varchar(100);not null" json:"title"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	PostID    uint      `gorm:"not null;index" json:"post"`
	AuthorID  uint      `gorm:"not null;index" json:"author"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Author User `gorm:"foreignKey:AuthorID;references:ID;constraint:OnDelete:CASCADE" json:"-"`

	BodyHTML string `gorm:"-" json:"body_html,omitempty"`
}

// TableName specifies the table name
func (SubPost) TableName() string {
	return "sub_posts"
}
