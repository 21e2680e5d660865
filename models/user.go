package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User holds the structure for the users collection in mongo. A user owns
// vehicles and is identified to the consultation endpoints by document type and
// number.
type User struct {
	ID                  primitive.ObjectID `json:"_id" bson:"_id"`
	Email               string             `json:"email" bson:"email"`
	FullName            string             `json:"fullName" bson:"fullName"`
	PasswordHash        string             `json:"-" bson:"password"`
	IsActive            bool               `json:"isActive" bson:"isActive"`
	IsSuperadmin        bool               `json:"isSuperadmin" bson:"isSuperadmin"`
	DocumentType        string             `json:"documentType" bson:"documentType"` // CC, CE, NIT, PP
	DocumentNumber      string             `json:"documentNumber" bson:"documentNumber"`
	Phone               string             `json:"phone,omitempty" bson:"phone,omitempty"`
	City                string             `json:"city,omitempty" bson:"city,omitempty"`
	NotificationEmail   string             `json:"notificationEmail,omitempty" bson:"notificationEmail,omitempty"`
	LastLogin           *time.Time         `json:"lastLogin,omitempty" bson:"lastLogin,omitempty"`
	FailedLoginAttempts int                `json:"failedLoginAttempts" bson:"failedLoginAttempts"`
	CreatedAt           time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt           time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// ContactEmail is where statements and receipts go
func (u User) ContactEmail() string {
	if u.NotificationEmail != "" {
		return u.NotificationEmail
	}
	return u.Email
}

// DocumentType holds the structure for the documentTypes collection in mongo
type DocumentType struct {
	Code        string `json:"code" bson:"_id"`
	Name        string `json:"name" bson:"name"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
	IsActive    bool   `json:"isActive" bson:"isActive"`
}
