package interview

import "time"

// Interview captures an interview card shown on the landing page.
type Interview struct {
	ID        string    `json:"id" yaml:"id"`
	UserID    string    `json:"userId" yaml:"userId"`
	Role      string    `json:"role" yaml:"role"`
	Type      string    `json:"type" yaml:"type"`
	Level     string    `json:"level,omitempty" yaml:"level"`
	Techstack []string  `json:"techstack" yaml:"techstack"`
	Questions []string  `json:"questions,omitempty" yaml:"questions"`
	Finalized bool      `json:"finalized" yaml:"finalized"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
}

// CategoryScore rates one dimension of an answered interview.
type CategoryScore struct {
	Name    string `json:"name"`
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

// Feedback is the assessment produced once an interview call has finished.
type Feedback struct {
	ID                  string          `json:"id"`
	InterviewID         string          `json:"interviewId"`
	UserID              string          `json:"userId"`
	TotalScore          int             `json:"totalScore"`
	CategoryScores      []CategoryScore `json:"categoryScores"`
	Strengths           []string        `json:"strengths"`
	AreasForImprovement []string        `json:"areasForImprovement"`
	FinalAssessment     string          `json:"finalAssessment"`
	CreatedAt           time.Time       `json:"createdAt"`
}
