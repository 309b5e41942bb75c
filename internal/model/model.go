// Package model содержит доменные сущности каталога академий.
package model

import (
	"io"
	"time"
)

// User представляет зарегистрированного пользователя.
type User struct {
	ID           string
	Login        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Profile содержит публичные данные пользователя.
type Profile struct {
	ID        string     `json:"id"`
	Username  *string    `json:"username"`
	AvatarURL *string    `json:"avatarUrl"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// GymStatus описывает статус модерации академии.
type GymStatus string

const (
	GymStatusPending GymStatus = "pending"
	GymStatusActive  GymStatus = "active"
)

// MaxGymImages ограничивает количество фотографий одной академии.
const MaxGymImages = 6

// Location описывает штат и город.
type Location struct {
	State string `json:"state"`
	City  string `json:"city"`
}

// Pricing содержит цены планов в реалах.
type Pricing struct {
	Daily     float64 `json:"daily" validate:"gte=0"`
	Monthly   float64 `json:"monthly" validate:"gte=0"`
	Quarterly float64 `json:"quarterly" validate:"gte=0"`
	Yearly    float64 `json:"yearly" validate:"gte=0"`
}

// Gym описывает карточку академии.
type Gym struct {
	ID               string    `json:"id"`
	OwnerID          string    `json:"ownerId"`
	CNPJ             string    `json:"cnpj"`
	Name             string    `json:"name"`
	Location         Location  `json:"location"`
	Address          string    `json:"address"`
	Description      string    `json:"description"`
	ShortDescription string    `json:"shortDescription"`
	Phone            string    `json:"phone"`
	Email            *string   `json:"email,omitempty"`
	Website          *string   `json:"website,omitempty"`
	Instagram        *string   `json:"instagram,omitempty"`
	OpeningHours     string    `json:"openingHours"`
	Amenities        []string  `json:"amenities"`
	Pricing          Pricing   `json:"pricing"`
	Images           []string  `json:"images"`
	MainImage        *string   `json:"mainImage"`
	Status           GymStatus `json:"status"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// GymInput содержит данные формы регистрации и редактирования академии.
type GymInput struct {
	CNPJ             string   `json:"cnpj" validate:"required,cnpj"`
	Name             string   `json:"name" validate:"min=3,max=120"`
	Description      string   `json:"description" validate:"min=20,max=5000"`
	ShortDescription string   `json:"shortDescription" validate:"min=10,max=300"`
	State            string   `json:"state" validate:"required,brstate"`
	City             string   `json:"city" validate:"required"`
	Address          string   `json:"address" validate:"min=5,max=300"`
	Phone            string   `json:"phone" validate:"min=10,max=30"`
	Email            string   `json:"email" validate:"omitempty,email"`
	Website          string   `json:"website" validate:"omitempty,max=300"`
	Instagram        string   `json:"instagram" validate:"omitempty,max=100"`
	OpeningHours     string   `json:"openingHours" validate:"min=5,max=300"`
	Amenities        []string `json:"amenities" validate:"min=1,dive,required"`
	Pricing          Pricing  `json:"pricing"`
	Images           []string `json:"images" validate:"max=6"`
}

// Credentials содержит логин (email) и пароль пользователя.
type Credentials struct {
	Login    string `json:"login" validate:"required,email"`
	Password string `json:"password" validate:"min=6,max=72"`
}

// ImageUpload описывает загружаемое изображение академии.
type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// GymFilter задаёт условия поиска академий.
type GymFilter struct {
	State string
	City  string
	Limit int
}

// CategoryRating содержит пять оценок по категориям в диапазоне 0–5.
type CategoryRating struct {
	Space         float64 `json:"space"`
	Equipment     float64 `json:"equipment"`
	ValueForMoney float64 `json:"valueForMoney"`
	Services      float64 `json:"services"`
	Water         float64 `json:"water"`
}

// Attribution определяет, от чьего имени оставлена оценка или комментарий.
// UserID равен nil для анонимного автора.
type Attribution struct {
	UserID      *string `json:"userId"`
	DisplayName string  `json:"userName"`
}

// RatingSubmission описывает одну оценку академии.
type RatingSubmission struct {
	ID         string         `json:"id"`
	GymID      string         `json:"gymId"`
	Categories CategoryRating `json:"categories"`
	Overall    float64        `json:"overall"`
	Author     Attribution    `json:"author"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// AggregateRating содержит средние оценки академии и число оценок.
type AggregateRating struct {
	CategoryRating
	Overall float64 `json:"overall"`
	Count   int     `json:"count"`
}

// Comment описывает комментарий к академии.
type Comment struct {
	ID        string      `json:"id"`
	GymID     string      `json:"gymId"`
	Author    Attribution `json:"author"`
	Text      string      `json:"comment"`
	CreatedAt time.Time   `json:"createdAt"`
}

// GymSummary — академия с рейтингом для списков.
type GymSummary struct {
	Gym
	Rating  AggregateRating `json:"rating"`
	Reviews int             `json:"reviews"`
}

// GymDetail — академия с рейтингом и комментариями для страницы академии.
type GymDetail struct {
	GymSummary
	Comments []Comment `json:"comments"`
}
