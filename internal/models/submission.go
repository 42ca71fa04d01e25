package models

import (
	"fmt"
	"net/mail"
	"strconv"
	"strings"
)

// Submission is the raw citizen input for a new issue.
type Submission struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	Phone         string `json:"phone,omitempty"`
	Email         string `json:"email"`
	NotifyByEmail bool   `json:"notifyByEmail"`
	MediaURL      string `json:"mediaUrl,omitempty"`
	Location      string `json:"location,omitempty"`
	Ward          string `json:"ward,omitempty"`
	City          string `json:"city,omitempty"`
	PostalCode    string `json:"postalCode,omitempty"`
	Upvotes       int    `json:"upvotes,omitempty"`
	CommentCount  int    `json:"commentCount,omitempty"`
}

// Validate checks the required fields. Returned errors wrap ErrValidation.
func (s Submission) Validate() error {
	var missing []string
	if strings.TrimSpace(s.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(s.Description) == "" {
		missing = append(missing, "description")
	}
	if strings.TrimSpace(s.Email) == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", ErrValidation, strings.Join(missing, ", "))
	}
	if _, err := mail.ParseAddress(s.Email); err != nil {
		return fmt.Errorf("%w: invalid email %q", ErrValidation, s.Email)
	}
	return nil
}

// Text is the classifier input: title and description joined as one sentence pair.
func (s Submission) Text() string {
	return s.Title + ". " + s.Description
}

// ParsedLocation combines the free-text location with the administrative
// area fields. It is nil when none of them is set.
func (s Submission) ParsedLocation() *Location {
	loc := ParseLocation(s.Location)
	ward, city, postal := strings.TrimSpace(s.Ward), strings.TrimSpace(s.City), strings.TrimSpace(s.PostalCode)
	if loc == nil && ward == "" && city == "" && postal == "" {
		return nil
	}
	if loc == nil {
		loc = &Location{}
	}
	loc.Ward, loc.City, loc.PostalCode = ward, city, postal
	return loc
}

// ParseLocation turns a free-text location into a Location. A "lat, lon" pair is
// stored as GeoJSON-ordered coordinates; anything else is kept as the address.
// An empty string yields nil.
func ParseLocation(s string) *Location {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	loc := &Location{Address: s}
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return loc
	}
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, errLon := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errLat != nil || errLon != nil {
		return loc
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return loc
	}
	loc.Coordinates = []float64{lon, lat}
	return loc
}
