package transcript

import (
	"math"
	"strings"

	"github.com/zhouzirui/prepx/backend/internal/model/call"
)

// Category names used in every assessment.
const (
	CategoryCommunication  = "Communication Skills"
	CategoryTechnical      = "Technical Knowledge"
	CategoryProblemSolving = "Problem Solving"
	CategoryRoleFit        = "Cultural & Role Fit"
	CategoryConfidence     = "Confidence & Clarity"
)

// Categories lists the assessment dimensions in display order.
var Categories = []string{
	CategoryCommunication,
	CategoryTechnical,
	CategoryProblemSolving,
	CategoryRoleFit,
	CategoryConfidence,
}

// Stats summarises what the candidate said during a call.
type Stats struct {
	Questions      int
	Answers        int
	Words          int
	AvgAnswerWords float64
	Fillers        int
	TechnicalTerms int
}

// Score is one rated dimension.
type Score struct {
	Name    string
	Score   int
	Comment string
}

// Assessment is the heuristic verdict over a transcript.
type Assessment struct {
	Stats               Stats
	Total               int
	Categories          []Score
	Strengths           []string
	AreasForImprovement []string
	Summary             string
}

var fillerPhrases = []string{
	"um", "uh", "erm", "hmm", "like", "you know", "basically", "actually", "i mean", "sort of", "kind of",
}

var technicalTerms = []string{
	"api", "database", "cache", "latency", "concurrency", "thread", "goroutine", "index", "query", "test",
	"deploy", "kubernetes", "docker", "react", "component", "state", "algorithm", "complexity", "scal",
	"queue", "microservice", "http", "typescript", "architecture", "design", "performance", "refactor",
}

var punctuation = strings.NewReplacer(".", " ", ",", " ", "!", " ", "?", " ", ";", " ", ":", " ")

// Collect gathers statistics from the finalized transcript.
func Collect(entries []call.Entry) Stats {
	var stats Stats
	for _, entry := range entries {
		switch entry.Role {
		case call.RoleAssistant:
			if strings.Contains(entry.Content, "?") {
				stats.Questions++
			}
		case call.RoleUser:
			stats.Answers++
			words := strings.Fields(punctuation.Replace(strings.ToLower(entry.Content)))
			text := " " + strings.Join(words, " ") + " "
			stats.Words += len(words)
			for _, word := range words {
				if isFillerWord(word) {
					stats.Fillers++
				}
			}
			for _, phrase := range fillerPhrases {
				if strings.Contains(phrase, " ") {
					stats.Fillers += strings.Count(text, " "+phrase+" ")
				}
			}
			for _, term := range technicalTerms {
				if strings.Contains(text, term) {
					stats.TechnicalTerms++
				}
			}
		}
	}
	if stats.Answers > 0 {
		stats.AvgAnswerWords = float64(stats.Words) / float64(stats.Answers)
	}
	return stats
}

// Assess scores a transcript without a language model.
func Assess(entries []call.Entry) Assessment {
	stats := Collect(entries)
	if stats.Answers == 0 {
		scores := make([]Score, 0, len(Categories))
		for _, name := range Categories {
			scores = append(scores, Score{Name: name, Score: 0, Comment: "No answers were recorded."})
		}
		return Assessment{
			Stats:               stats,
			Categories:          scores,
			AreasForImprovement: []string{"Answer the interviewer's questions to receive an assessment."},
			Summary:             "The candidate did not answer any questions during this interview.",
		}
	}

	depth := clampUnit(stats.AvgAnswerWords / 25)
	fluency := 1 - clampUnit(float64(stats.Fillers)/math.Max(float64(stats.Words), 1)*10)
	engagement := 1.0
	if stats.Questions > 0 {
		engagement = clampUnit(float64(stats.Answers) / float64(stats.Questions))
	}
	technical := clampUnit(float64(stats.TechnicalTerms) / float64(stats.Answers*2))

	scores := []Score{
		rate(CategoryCommunication, 40+40*depth+20*fluency),
		rate(CategoryTechnical, 30+50*technical+20*depth),
		rate(CategoryProblemSolving, 35+45*depth+20*engagement),
		rate(CategoryRoleFit, 50+50*engagement),
		rate(CategoryConfidence, 40+60*fluency*math.Max(depth, 0.5)),
	}

	total := 0
	for _, s := range scores {
		total += s.Score
	}
	total = int(math.Round(float64(total) / float64(len(scores))))

	var strengths, areas []string
	if depth >= 0.8 {
		strengths = append(strengths, "Gave detailed, well developed answers.")
	} else if depth < 0.4 {
		areas = append(areas, "Expand answers with concrete examples and more detail.")
	}
	if fluency >= 0.8 {
		strengths = append(strengths, "Spoke clearly with few filler words.")
	} else if fluency < 0.5 {
		areas = append(areas, "Reduce filler words to sound more confident.")
	}
	if technical >= 0.5 {
		strengths = append(strengths, "Used relevant technical vocabulary.")
	} else {
		areas = append(areas, "Reference specific technologies and trade-offs in answers.")
	}
	if engagement < 0.7 {
		areas = append(areas, "Respond to every question the interviewer asks.")
	}
	if len(strengths) == 0 {
		strengths = append(strengths, "Completed the interview session.")
	}

	return Assessment{
		Stats:               stats,
		Total:               total,
		Categories:          scores,
		Strengths:           strengths,
		AreasForImprovement: areas,
		Summary:             summarize(total),
	}
}

func rate(name string, value float64) Score {
	score := ClampScore(int(math.Round(value)))
	return Score{Name: name, Score: score, Comment: commentFor(score)}
}

// ClampScore bounds a score to 0..100.
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func commentFor(score int) string {
	switch {
	case score >= 80:
		return "Strong performance."
	case score >= 60:
		return "Solid, with room to grow."
	case score >= 40:
		return "Needs more practice."
	default:
		return "Significant improvement needed."
	}
}

func summarize(total int) string {
	switch {
	case total >= 80:
		return "The candidate performed strongly and is well prepared for this role."
	case total >= 60:
		return "The candidate showed a solid foundation but should sharpen a few areas."
	case total >= 40:
		return "The candidate has potential but needs more preparation before a real interview."
	default:
		return "The candidate struggled in this interview and should practise further."
	}
}

func isFillerWord(word string) bool {
	for _, phrase := range fillerPhrases {
		if !strings.Contains(phrase, " ") && word == phrase {
			return true
		}
	}
	return false
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
