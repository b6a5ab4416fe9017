// Package services – lead payload normalization
//
// The external scraper sends loosely typed JSON whose field names vary in
// casing and vocabulary. NormalizeIncomingLead is the only place that knows
// about those variants: every canonical field has one ordered alias list, and
// the first alias holding a non-null, non-blank value wins. Nothing else in
// the codebase reads the raw payload.
package services

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/tbourn/leadops-backend/internal/domain"
	"github.com/tbourn/leadops-backend/internal/sysutil"
)

// Alias lists in priority order. A dotted alias descends into nested objects.
var (
	aliasPlaceID      = []string{"place_id", "placeId", "placeID"}
	aliasTitle        = []string{"title", "business_name", "businessName"}
	aliasName         = []string{"name", "contact_name", "contactName"}
	aliasFirstName    = []string{"first_name", "firstName"}
	aliasLastName     = []string{"last_name", "lastName"}
	aliasEmail        = []string{"email", "email_address", "emailAddress"}
	aliasPhone        = []string{"phone", "phone_number", "phoneNumber"}
	aliasWebsite      = []string{"website", "url"}
	aliasCleanURL     = []string{"clean_url", "cleanUrl"}
	aliasFacebook     = socialAliases("facebook")
	aliasInstagram    = socialAliases("instagram")
	aliasLinkedin     = socialAliases("linkedin")
	aliasTwitter      = socialAliases("twitter")
	aliasYoutube      = socialAliases("youtube")
	aliasTiktok       = socialAliases("tiktok")
	aliasAddress      = []string{"address", "full_address", "fullAddress"}
	aliasPostalCode   = []string{"postal_code", "postalCode", "zip_code", "zipCode", "zip"}
	aliasLatitude     = []string{"latitude", "lat", "location.lat"}
	aliasLongitude    = []string{"longitude", "lng", "lon", "location.lng"}
	aliasBusinessType = []string{"business_type", "businessType", "category_name", "categoryName"}
	aliasCategoryID   = []string{"category_id", "categoryId"}
	aliasRating       = []string{"rating", "total_score", "totalScore"}
	aliasReviewCount  = []string{"review_count", "reviewCount", "reviews_count", "reviewsCount"}
)

func socialAliases(network string) []string {
	return []string{network, network + "_url", network + "Url"}
}

// IncomingLead is the canonical form of an ingestion payload.
type IncomingLead struct {
	PlaceID string
	Title   string

	Name, FirstName, LastName, Email, Phone *string

	Website, CleanURL *string

	Facebook, Instagram, Linkedin, Twitter, Youtube, Tiktok *string

	Address, PostalCode *string
	Latitude, Longitude *float64

	BusinessType, CategoryID *string

	Rating      *string
	ReviewCount *int

	// Raw is the payload as received, re-encoded as JSON.
	Raw json.RawMessage
}

// NormalizeIncomingLead maps a loosely typed payload onto IncomingLead.
// It fails with a *ValidationError when placeId or title is missing; no
// other field is validated.
func NormalizeIncomingLead(raw map[string]any) (IncomingLead, error) {
	var in IncomingLead

	placeID := pickString(raw, aliasPlaceID)
	if placeID == nil {
		return in, invalid("place_id", "place_id is required")
	}
	title := pickString(raw, aliasTitle)
	if title == nil {
		return in, invalid("title", "title is required")
	}
	in.PlaceID = *placeID
	in.Title = *title

	in.Name = pickString(raw, aliasName)
	in.FirstName = pickString(raw, aliasFirstName)
	in.LastName = pickString(raw, aliasLastName)
	in.Email = pickString(raw, aliasEmail)
	in.Phone = pickString(raw, aliasPhone)

	in.Website = pickString(raw, aliasWebsite)
	in.CleanURL = pickString(raw, aliasCleanURL)
	in.Facebook = pickString(raw, aliasFacebook)
	in.Instagram = pickString(raw, aliasInstagram)
	in.Linkedin = pickString(raw, aliasLinkedin)
	in.Twitter = pickString(raw, aliasTwitter)
	in.Youtube = pickString(raw, aliasYoutube)
	in.Tiktok = pickString(raw, aliasTiktok)

	in.Address = pickString(raw, aliasAddress)
	in.PostalCode = pickString(raw, aliasPostalCode)
	in.Latitude = pickFloat(raw, aliasLatitude)
	in.Longitude = pickFloat(raw, aliasLongitude)

	in.BusinessType = pickString(raw, aliasBusinessType)
	in.CategoryID = pickString(raw, aliasCategoryID)

	in.Rating = pickString(raw, aliasRating)
	in.ReviewCount = pickInt(raw, aliasReviewCount)

	if b, err := json.Marshal(raw); err == nil {
		in.Raw = b
	}
	return in, nil
}

// Lead converts the canonical payload into a row ready for upsert. Workflow
// fields take their ingestion defaults.
func (in IncomingLead) Lead() *domain.Lead {
	return &domain.Lead{
		PlaceID:      in.PlaceID,
		Title:        in.Title,
		Name:         in.Name,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		Phone:        in.Phone,
		Website:      in.Website,
		CleanURL:     in.CleanURL,
		Facebook:     in.Facebook,
		Instagram:    in.Instagram,
		Linkedin:     in.Linkedin,
		Twitter:      in.Twitter,
		Youtube:      in.Youtube,
		Tiktok:       in.Tiktok,
		Address:      in.Address,
		PostalCode:   in.PostalCode,
		Latitude:     in.Latitude,
		Longitude:    in.Longitude,
		BusinessType: in.BusinessType,
		CategoryID:   in.CategoryID,
		Rating:       in.Rating,
		ReviewCount:  in.ReviewCount,
		Status:       domain.LeadStatusNew,
		Raw:          []byte(in.Raw),
	}
}

// lookup resolves one alias, descending into nested objects for dotted names.
func lookup(raw map[string]any, alias string) (any, bool) {
	cur := any(raw)
	for _, part := range strings.Split(alias, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// asString coerces JSON strings and numbers to a trimmed string.
func asString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	default:
		return "", false
	}
}

// asFloat coerces JSON numbers and numeric strings. NaN and Inf are rejected.
func asFloat(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		p, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = p
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func pickString(raw map[string]any, aliases []string) *string {
	vals := make([]string, 0, len(aliases))
	for _, a := range aliases {
		v, ok := lookup(raw, a)
		if !ok {
			continue
		}
		if s, ok := asString(v); ok {
			vals = append(vals, s)
		}
	}
	if s := strings.TrimSpace(sysutil.FirstNonEmpty(vals...)); s != "" {
		return &s
	}
	return nil
}

// pickFloat returns the first present, non-blank alias as a number. A value
// that is present but not numeric counts as absent rather than falling
// through to lower-priority aliases.
func pickFloat(raw map[string]any, aliases []string) *float64 {
	for _, a := range aliases {
		v, ok := lookup(raw, a)
		if !ok {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		f, ok := asFloat(v)
		if !ok {
			return nil
		}
		return &f
	}
	return nil
}

// pickInt accepts integral numbers and numeric strings ("12", "12.0").
// Fractional values are truncated.
func pickInt(raw map[string]any, aliases []string) *int {
	f := pickFloat(raw, aliases)
	if f == nil || *f > math.MaxInt32 || *f < math.MinInt32 {
		return nil
	}
	n := int(*f)
	return &n
}
