package catalog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/muhammadolammi/skillmatchworker/internal/models"
)

const maxLineBytes = 4 << 20

type location struct {
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
}

// posting is one line of the jobs NDJSON export. Fields the matcher does not
// use (tasks, perks, education) are ignored.
type posting struct {
	JobTitle        string   `json:"job_title"`
	Company         string   `json:"company"`
	Location        location `json:"location"`
	ExperienceLevel string   `json:"experience_level"`
	EmploymentType  string   `json:"employment_type"`
	Skills          any      `json:"skills_tech_stack"`
	JobURL          string   `json:"job_url"`
	ApplyURL        string   `json:"apply_url"`
}

func (p posting) item(id int64) models.CatalogItem {
	var skills []string
	if list, ok := p.Skills.([]any); ok {
		for _, s := range list {
			name := strings.TrimSpace(fmt.Sprint(s))
			if s == nil || name == "" {
				continue
			}
			skills = append(skills, name)
		}
	}
	return models.CatalogItem{
		ID:              id,
		Title:           p.JobTitle,
		Company:         p.Company,
		LocationCity:    p.Location.City,
		LocationState:   p.Location.State,
		LocationCountry: p.Location.Country,
		ExperienceLevel: p.ExperienceLevel,
		EmploymentType:  p.EmploymentType,
		Skills:          skills,
		JobURL:          p.JobURL,
		ApplyURL:        p.ApplyURL,
	}
}

// Parse reads NDJSON postings. Lines that are not JSON objects or have no
// job_title are counted in skipped. Items are numbered from 1 in file order.
func Parse(r io.Reader) (items []models.CatalogItem, skipped int, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var p posting
		if err := json.Unmarshal([]byte(line), &p); err != nil || strings.TrimSpace(p.JobTitle) == "" {
			skipped++
			continue
		}
		items = append(items, p.item(int64(len(items)+1)))
	}
	if err := sc.Err(); err != nil {
		return nil, skipped, fmt.Errorf("read postings: %w", err)
	}
	return items, skipped, nil
}

// DemoCatalog is loaded when a source yields no postings.
func DemoCatalog() []models.CatalogItem {
	return []models.CatalogItem{
		{
			ID:              1,
			Title:           "AI/ML Engineer",
			Company:         "Acme AI",
			LocationCity:    "Gurugram",
			LocationState:   "Haryana",
			LocationCountry: "India",
			ExperienceLevel: "Mid-level / Intermediate",
			EmploymentType:  "Full Time",
			Skills:          []string{"AWS", "Docker", "PyTorch", "LLMs", "TypeScript", "Next.js", "Tailwind CSS", "SQLite"},
			JobURL:          "https://example.com/job/1",
			ApplyURL:        "https://example.com/job/1/apply",
		},
		{
			ID:              2,
			Title:           "Frontend Engineer",
			Company:         "Webify",
			LocationCity:    "San Francisco",
			LocationState:   "CA",
			LocationCountry: "USA",
			ExperienceLevel: "Senior",
			EmploymentType:  "Full Time",
			Skills:          []string{"React", "Next.js", "TypeScript", "Tailwind CSS"},
			JobURL:          "https://example.com/job/2",
			ApplyURL:        "https://example.com/job/2/apply",
		},
	}
}
