package arambo

import "time"

// Admin is the authenticated back-office principal, as reported by the auth
// API. It is held in memory only and re-fetched on every verify.
type Admin struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
}

// LoginResult is the payload of a successful login: the bearer token, the
// human-readable session duration (e.g. "15m") and the admin identity.
type LoginResult struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   string `json:"expiresIn"`
	Admin       Admin  `json:"admin"`
}

type Property struct {
	ID           string     `json:"id,omitempty"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone"`
	PropertyName string     `json:"propertyName"`
	ListingType  string     `json:"listingType"`
	PropertyType string     `json:"propertyType,omitempty"`
	Size         int        `json:"size"`
	Location     string     `json:"location"`
	Bedrooms     int        `json:"bedrooms"`
	Bathroom     int        `json:"bathroom"`
	Category     string     `json:"category"`
	Area         string     `json:"area,omitempty"`
	Floor        int        `json:"floor,omitempty"`
	Rent         int        `json:"rent,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	IsConfirmed  bool       `json:"isConfirmed,omitempty"`
	CoverImage   string     `json:"coverImage,omitempty"`
	OtherImages  []string   `json:"otherImages,omitempty"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

type PropertyStats struct {
	Total          int            `json:"total"`
	ByCategory     map[string]int `json:"byCategory"`
	ByPropertyType map[string]int `json:"byPropertyType"`
	AvgSize        float64        `json:"avgSize"`
	AvgBedrooms    float64        `json:"avgBedrooms"`
}

type Trip struct {
	ID                string `json:"id,omitempty"`
	Name              string `json:"name"`
	Phone             string `json:"phone"`
	Email             string `json:"email"`
	ProductType       string `json:"productType"`
	PickupLocation    string `json:"pickupLocation"`
	DropOffLocation   string `json:"dropOffLocation"`
	PreferredDate     string `json:"preferredDate"`
	PreferredTimeSlot string `json:"preferredTimeSlot"`
	AdditionalNotes   string `json:"additionalNotes,omitempty"`
	TruckID           string `json:"truckId"`
	CreatedAt         string `json:"createdAt,omitempty"`
	UpdatedAt         string `json:"updatedAt,omitempty"`
}

type Truck struct {
	ID          string `json:"id,omitempty"`
	ModelNumber string `json:"modelNumber"`
	Height      int    `json:"height"`
	IsOpen      bool   `json:"isOpen"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

// Furniture documents come back from the API with a raw "_id" field; the
// client normalizes it into ID so callers never deal with both.
type Furniture struct {
	ID                 string `json:"id,omitempty"`
	RawID              string `json:"_id,omitempty"`
	Name               string `json:"name"`
	Email              string `json:"email"`
	Phone              string `json:"phone"`
	FurnitureType      string `json:"furnitureType"`
	PaymentType        string `json:"paymentType,omitempty"`
	FurnitureCondition string `json:"furnitureCondition,omitempty"`
	CreatedAt          string `json:"createdAt,omitempty"`
	UpdatedAt          string `json:"updatedAt,omitempty"`
}

func (f *Furniture) normalize() {
	if f.ID == "" {
		f.ID = f.RawID
	}
}

type FurnitureStats struct {
	Total       int            `json:"total"`
	ByType      map[string]int `json:"byType"`
	ByCondition map[string]int `json:"byCondition"`
}
