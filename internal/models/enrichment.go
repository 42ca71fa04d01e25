package models

// Classification is a successful category prediction from the AI classifier.
type Classification struct {
	Category   string             `json:"category"`
	Confidence float64            `json:"confidence"`
	Scores     map[string]float64 `json:"scores,omitempty"`
}

// PriorityRequest is the input to an external priority assessment.
type PriorityRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Text         string `json:"text"`
	Category     string `json:"category"`
	Location     string `json:"location"`
	Upvotes      int    `json:"upvotes"`
	CommentCount int    `json:"commentCount"`
}

// PriorityAssessment is a successful external priority result.
// SLAHours is zero when the service gave no hint.
type PriorityAssessment struct {
	Score     int              `json:"score"`
	Level     PriorityLevel    `json:"level"`
	Factors   *PriorityFactors `json:"factors,omitempty"`
	Reasoning string           `json:"reasoning,omitempty"`
	SLAHours  int              `json:"slaHours,omitempty"`
}

// Categories are the civic categories the classifier is asked to choose from.
var Categories = []string{
	"Roads & Infrastructure",
	"Water & Sanitation",
	"Electricity & Power",
	"Waste Management",
	"Public Amenities",
	"Environment",
	CategoryOther,
}

var categoryRisk = map[string]float64{
	"Roads & Infrastructure": 60,
	"Water & Sanitation":     80,
	"Electricity & Power":    90,
	"Waste Management":       50,
	"Public Amenities":       40,
	"Environment":            70,
}

// CategoryRisk returns the baseline 0-100 risk rating of a category.
// Unknown categories rate 30.
func CategoryRisk(category string) float64 {
	if r, ok := categoryRisk[category]; ok {
		return r
	}
	return 30
}

// SLAHoursForLevel returns the resolution target for a priority level.
func SLAHoursForLevel(level PriorityLevel) int {
	switch level {
	case PriorityHigh:
		return 24
	case PriorityLow:
		return 168
	default:
		return 72
	}
}
