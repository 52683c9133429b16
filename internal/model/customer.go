package model

import "time"

// Customer is the identity record persisted in the customers collection/table.
type Customer struct {
	ID                     string    `json:"id"                               bson:"_id"                              db:"id"`
	AuthUserID             string    `json:"authUserId,omitempty"             bson:"authUserId,omitempty"             db:"auth_user_id"`
	Username               string    `json:"username"                         bson:"username"                         db:"username"`
	PasswordHash           string    `json:"-"                                bson:"passwordHash,omitempty"           db:"password_hash"`
	FirstName              string    `json:"firstName"                        bson:"firstName"                        db:"first_name"`
	LastName               string    `json:"lastName"                         bson:"lastName"                         db:"last_name"`
	Email                  string    `json:"email"                            bson:"email"                            db:"email"`
	PhoneNumber            string    `json:"phoneNumber"                      bson:"phoneNumber"                      db:"phone_number"`
	ProfilePicture         string    `json:"profilePicture,omitempty"         bson:"profilePicture,omitempty"         db:"profile_picture"`
	Bio                    string    `json:"bio,omitempty"                    bson:"bio,omitempty"                    db:"bio"`
	Location               string    `json:"location,omitempty"               bson:"location,omitempty"               db:"location"`
	PreferredHairdresserID string    `json:"preferredHairdresserId,omitempty" bson:"preferredHairdresserId,omitempty" db:"preferred_hairdresser_id"`
	ServicesInterestedIn   []string  `json:"servicesInterestedIn"             bson:"servicesInterestedIn"             db:"-"`
	BookingHistory         []string  `json:"bookingHistory"                   bson:"bookingHistory"                   db:"-"`
	Reviews                []string  `json:"reviews"                          bson:"reviews"                          db:"-"`
	Ratings                []float64 `json:"ratings"                          bson:"ratings"                          db:"-"`
	IsVerified             bool      `json:"isVerified"                       bson:"isVerified"                       db:"is_verified"`
	CreatedAt              time.Time `json:"createdAt"                        bson:"createdAt"                        db:"created_at"`
	UpdatedAt              time.Time `json:"updatedAt"                        bson:"updatedAt"                        db:"updated_at"`
}

// CreateCustomerInput is the creation DTO shared by POST /customers and the queue intake.
type CreateCustomerInput struct {
	AuthUserID  string `json:"authUserId"  validate:"omitempty,max=128"`
	Username    string `json:"username"    validate:"required,max=64"`
	FirstName   string `json:"firstName"   validate:"required,max=100"`
	LastName    string `json:"lastName"    validate:"required,max=100"`
	Email       string `json:"email"       validate:"required,email"`
	PhoneNumber string `json:"phoneNumber" validate:"required,ma_phone"`
}

// RegisterCustomerInput is CreateCustomerInput plus the secret to hash.
type RegisterCustomerInput struct {
	CreateCustomerInput
	Password string `json:"password" validate:"required,min=4,max=72"`
}

// UpdateCustomerInput carries a partial patch: nil fields keep their stored value.
type UpdateCustomerInput struct {
	Username               *string `json:"username"               validate:"omitempty,min=1,max=64"`
	FirstName              *string `json:"firstName"              validate:"omitempty,min=1,max=100"`
	LastName               *string `json:"lastName"               validate:"omitempty,min=1,max=100"`
	Email                  *string `json:"email"                  validate:"omitempty,email"`
	PhoneNumber            *string `json:"phoneNumber"            validate:"omitempty,ma_phone"`
	ProfilePicture         *string `json:"profilePicture"         validate:"omitempty,url"`
	Bio                    *string `json:"bio"                    validate:"omitempty,max=1000"`
	Location               *string `json:"location"               validate:"omitempty,max=200"`
	PreferredHairdresserID *string `json:"preferredHairdresserId" validate:"omitempty,max=128"`
}

// Empty reports whether the patch changes nothing.
func (u UpdateCustomerInput) Empty() bool {
	return u.Username == nil && u.FirstName == nil && u.LastName == nil &&
		u.Email == nil && u.PhoneNumber == nil && u.ProfilePicture == nil &&
		u.Bio == nil && u.Location == nil && u.PreferredHairdresserID == nil
}

// LoginInput is the body of POST /customers/login.
type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}
