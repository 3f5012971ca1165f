package interview

import "time"

// Seed provides the placeholder interviews shown before any real data exists.
func Seed() []Interview {
	return []Interview{
		{
			ID:        "1",
			UserID:    "user1",
			Role:      "Frontend Developer",
			Type:      "Technical",
			Level:     "Junior",
			Techstack: []string{"React", "TypeScript", "Next.js", "Tailwind CSS"},
			Questions: []string{"What is React?"},
			Finalized: false,
			CreatedAt: time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC),
		},
		{
			ID:        "2",
			UserID:    "user1",
			Role:      "Full Stack Developer",
			Type:      "Mixed",
			Level:     "Senior",
			Techstack: []string{"Node.js", "Express", "MongoDB", "React"},
			Questions: []string{"What is Node.js?"},
			Finalized: false,
			CreatedAt: time.Date(2024, time.March, 14, 15, 30, 0, 0, time.UTC),
		},
		{
			ID:        "3",
			UserID:    "user2",
			Role:      "Backend Engineer",
			Type:      "Behavioral",
			Level:     "Mid",
			Techstack: []string{"Go", "PostgreSQL", "Docker"},
			Questions: []string{"Tell me about a production incident you handled."},
			Finalized: true,
			CreatedAt: time.Date(2024, time.March, 12, 9, 0, 0, 0, time.UTC),
		},
	}
}
