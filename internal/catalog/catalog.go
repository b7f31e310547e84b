// Package catalog holds the static, read-only course list rendered by the app.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed courses.yaml
var coursesYAML []byte

// Course is one catalog entry.
type Course struct {
	Title       string `yaml:"title" json:"title"`
	Price       uint   `yaml:"price" json:"price"`
	Description string `yaml:"description" json:"description"`
}

var (
	loadOnce sync.Once
	courses  []Course
	loadErr  error
)

// Parse decodes a catalog document.
func Parse(data []byte) ([]Course, error) {
	var doc struct {
		Courses []Course `yaml:"courses"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}
	for i, c := range doc.Courses {
		if strings.TrimSpace(c.Title) == "" {
			return nil, fmt.Errorf("catalog: course %d has no title", i)
		}
	}
	return doc.Courses, nil
}

// Courses returns a copy of the embedded catalog in declaration order.
// The embedded document is validated by tests, so a parse failure is a build defect.
func Courses() []Course {
	loadOnce.Do(func() {
		courses, loadErr = Parse(coursesYAML)
	})
	if loadErr != nil {
		panic(loadErr)
	}
	return append([]Course(nil), courses...)
}

// Matches reports whether query is a literal, case-sensitive substring of the
// course title or description. The empty query matches every course.
func (c Course) Matches(query string) bool {
	return strings.Contains(c.Title, query) || strings.Contains(c.Description, query)
}

// Filter keeps the courses matching query, preserving order.
func Filter(list []Course, query string) []Course {
	out := make([]Course, 0, len(list))
	for _, c := range list {
		if c.Matches(query) {
			out = append(out, c)
		}
	}
	return out
}
