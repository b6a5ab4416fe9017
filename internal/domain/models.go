// Package domain defines the persistence models for leads, categories,
// zip-code scrape requests, and dashboard users. These types are mapped with
// GORM and form the core data layer of the operations backend.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Lead workflow statuses. Operators move a lead through these by hand; the
// ingestion path only ever writes LeadStatusNew.
const (
	LeadStatusNew         = "new"
	LeadStatusCalled      = "called"
	LeadStatusDidntAnswer = "didnt_answer"
	LeadStatusSuccess     = "success"
	LeadStatusFailed      = "failed"
)

// LeadStatuses lists every valid lead status in display order.
var LeadStatuses = []string{
	LeadStatusNew,
	LeadStatusCalled,
	LeadStatusDidntAnswer,
	LeadStatusSuccess,
	LeadStatusFailed,
}

// Zip-request statuses, advanced by the external scraping workflow.
const (
	ZipStatusPending    = "pending"
	ZipStatusProcessing = "processing"
	ZipStatusDone       = "done"
)

// ZipStatuses lists every valid zip-request status.
var ZipStatuses = []string{ZipStatusPending, ZipStatusProcessing, ZipStatusDone}

// Category statuses. A category is active while any of its zip requests is
// still being worked on.
const (
	CategoryActive   = "active"
	CategoryInactive = "inactive"
)

// User roles.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// ValidLeadStatus reports whether s is a known lead status.
func ValidLeadStatus(s string) bool { return contains(LeadStatuses, s) }

// ValidZipStatus reports whether s is a known zip-request status.
func ValidZipStatus(s string) bool { return contains(ZipStatuses, s) }

// ValidCategoryStatus reports whether s is a known category status.
func ValidCategoryStatus(s string) bool { return s == CategoryActive || s == CategoryInactive }

// ValidRole reports whether s is a known user role.
func ValidRole(s string) bool { return s == RoleAdmin || s == RoleUser }

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// Category groups leads and zip requests by business vertical. Its Status is
// derived from the zip requests that reference it and is kept in sync by the
// category reconciler.
type Category struct {
	ID        string    `json:"id"        gorm:"type:char(36);primaryKey"`
	Name      string    `json:"name"      gorm:"type:varchar(255);not null;uniqueIndex:ux_categories_name"`
	Status    string    `json:"status"    gorm:"type:varchar(16);not null;default:'inactive';index;check:chk_categories_status,status IN ('active','inactive')"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName returns the database table name for Category.
func (Category) TableName() string { return "categories" }

// Lead is a prospective customer, either scraped by the external workflow or
// entered by an operator. PlaceID is the external identity and the conflict
// target for ingestion upserts.
//
// Leads carry no UpdatedAt column: re-ingesting an identical payload leaves
// the stored row unchanged. The workflow fields (Status, Action, Notes,
// IsManual) belong to operators and are never touched by ingestion updates.
type Lead struct {
	ID      string `json:"id"      gorm:"type:char(36);primaryKey"`
	PlaceID string `json:"placeId" gorm:"type:text;not null;uniqueIndex:ux_leads_place_id"`
	Title   string `json:"title"   gorm:"type:text;not null"`

	// Contact
	Name      *string `json:"name,omitempty"`
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Email     *string `json:"email,omitempty"`
	Phone     *string `json:"phone,omitempty"`

	// Web presence
	Website   *string `json:"website,omitempty"`
	CleanURL  *string `json:"cleanUrl,omitempty"`
	Facebook  *string `json:"facebook,omitempty"`
	Instagram *string `json:"instagram,omitempty"`
	Linkedin  *string `json:"linkedin,omitempty"`
	Twitter   *string `json:"twitter,omitempty"`
	Youtube   *string `json:"youtube,omitempty"`
	Tiktok    *string `json:"tiktok,omitempty"`

	// Location
	Address    *string  `json:"address,omitempty"`
	PostalCode *string  `json:"postalCode,omitempty" gorm:"index"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`

	// Classification
	BusinessType *string `json:"businessType,omitempty"`
	CategoryID   *string `json:"categoryId,omitempty" gorm:"type:char(36);index"`

	// Quality signals
	Rating      *string `json:"rating,omitempty" gorm:"type:text"`
	ReviewCount *int    `json:"reviewCount,omitempty"`

	// Operator workflow
	Status   string  `json:"status"   gorm:"type:varchar(16);not null;default:'new';index:idx_leads_status_created,priority:1;check:chk_leads_status,status IN ('new','called','didnt_answer','success','failed')"`
	Action   *string `json:"action,omitempty"`
	Notes    *string `json:"notes,omitempty" gorm:"type:text"`
	IsManual bool    `json:"isManual" gorm:"not null;default:false"`

	// Raw is the last ingestion payload as received, kept for debugging
	// alias mismatches.
	Raw datatypes.JSON `json:"-"`

	CreatedAt time.Time `json:"createdAt" gorm:"index:idx_leads_status_created,priority:2;index:idx_leads_created"`

	// Category is cleared (not cascaded) when the category is removed.
	Category *Category `json:"-" gorm:"foreignKey:CategoryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

// TableName returns the database table name for Lead.
func (Lead) TableName() string { return "leads" }

// ZipRequest is a postal code queued for the external scraping workflow.
// Status is set externally (operator or scraper callback) and is never
// computed locally.
type ZipRequest struct {
	ID         string    `json:"id"         gorm:"type:char(36);primaryKey"`
	ZipCode    string    `json:"zipCode"    gorm:"type:varchar(16);not null;index"`
	Status     string    `json:"status"     gorm:"type:varchar(16);not null;default:'pending';check:chk_zip_requests_status,status IN ('pending','processing','done')"`
	CategoryID *string   `json:"categoryId,omitempty" gorm:"type:char(36);index"`
	CreatedAt  time.Time `json:"createdAt"  gorm:"index"`
	UpdatedAt  time.Time `json:"updatedAt"`

	Category *Category `json:"-" gorm:"foreignKey:CategoryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

// TableName returns the database table name for ZipRequest.
func (ZipRequest) TableName() string { return "zip_requests" }

// User is a dashboard account. Emails are stored lower-cased; only the bcrypt
// hash of the password is persisted.
type User struct {
	ID           string    `json:"id"        gorm:"type:char(36);primaryKey"`
	Email        string    `json:"email"     gorm:"type:varchar(320);not null;uniqueIndex:ux_users_email"`
	PasswordHash string    `json:"-"         gorm:"type:varchar(100);not null"`
	Role         string    `json:"role"      gorm:"type:varchar(16);not null;default:'user';check:chk_users_role,role IN ('admin','user')"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }
