package interview

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	dateLayout     = "Jan 2, 2006"
	pendingSummary = "You haven't taken this interview yet. Take it now to improve your skills."
)

var mixedPattern = regexp.MustCompile(`(?i)mix`)

// Card is the presentation-ready view of an interview and its feedback.
type Card struct {
	InterviewID string   `json:"interviewId"`
	UserID      string   `json:"userId"`
	Role        string   `json:"role"`
	Type        string   `json:"type"`
	Techstack   []string `json:"techstack"`
	Date        string   `json:"date"`
	CreatedAgo  string   `json:"createdAgo"`
	Score       string   `json:"score"`
	Summary     string   `json:"summary"`
	ActionLabel string   `json:"actionLabel"`
	ActionHref  string   `json:"actionHref"`
	HasFeedback bool     `json:"hasFeedback"`
}

// NormalizeType collapses any "mix"-like type into "Mixed".
func NormalizeType(t string) string {
	if mixedPattern.MatchString(t) {
		return "Mixed"
	}
	return t
}

// BuildCard derives the card view. feedback may be nil; now is used when the
// interview carries no creation time.
func BuildCard(item Interview, feedback *Feedback, now time.Time) Card {
	stamp := item.CreatedAt
	if feedback != nil && !feedback.CreatedAt.IsZero() {
		stamp = feedback.CreatedAt
	}
	if stamp.IsZero() {
		stamp = now
	}

	card := Card{
		InterviewID: item.ID,
		UserID:      item.UserID,
		Role:        item.Role,
		Type:        NormalizeType(item.Type),
		Techstack:   append([]string(nil), item.Techstack...),
		Date:        stamp.Format(dateLayout),
		CreatedAgo:  humanize.RelTime(stamp, now, "ago", "from now"),
		Score:       "---/100",
		Summary:     pendingSummary,
		ActionLabel: "View Interview",
		ActionHref:  fmt.Sprintf("/interview/%s", item.ID),
	}

	if feedback == nil {
		return card
	}

	card.HasFeedback = true
	card.Score = fmt.Sprintf("%d/100", feedback.TotalScore)
	if summary := strings.TrimSpace(feedback.FinalAssessment); summary != "" {
		card.Summary = summary
	}
	card.ActionLabel = "Check Feedback"
	card.ActionHref = fmt.Sprintf("/interview/%s/feedback", item.ID)
	return card
}
