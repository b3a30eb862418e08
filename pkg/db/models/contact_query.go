package models

import (
	"time"

	"github.com/google/uuid"
)

// ContactQuery is a message submitted through the contact form.
type ContactQuery struct {
	ID                 uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID             *uuid.UUID `gorm:"column:user_id;type:uuid"`
	Name               string     `gorm:"column:name;not null"`
	Email              string     `gorm:"column:email;not null"`
	Phone              *string    `gorm:"column:phone"`
	Message            string     `gorm:"column:message;not null"`
	ConfirmationSentAt *time.Time `gorm:"column:confirmation_sent_at"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// NewsletterSubscriber is an email opted in to the newsletter.
type NewsletterSubscriber struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email     string    `gorm:"column:email;not null;uniqueIndex:newsletter_subscribers_email_key"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
