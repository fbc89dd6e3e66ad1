// Package catalog serves the mocked course catalog: courses, instructors and
// community reviews, plus search, trending and recommendation sampling.
package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"learningpulse/pkg/domain"
)

//go:embed data/catalog.yaml
var defaultData []byte

const (
	DefaultSearchLimit         = 50
	DefaultTrendingLimit       = 10
	DefaultReviewLimit         = 3
	DefaultRecommendationLimit = 10

	// FallbackPreviewID is played when a course has no preview of its own.
	FallbackPreviewID = "rfscVS0vtbw"
	// AllSubjects disables the subject filter in Search.
	AllSubjects = "All"
)

var ErrNotFound = errors.New("not found")

type catalogFile struct {
	Subjects    []string                 `yaml:"subjects"`
	Instructors []domain.Instructor      `yaml:"instructors"`
	Courses     []domain.Course          `yaml:"courses"`
	Reviews     []domain.CommunityReview `yaml:"reviews"`
}

// Catalog is an immutable in-memory catalog with a shared random source.
type Catalog struct {
	subjects    []string
	courses     []domain.Course
	byKey       map[string]int
	instructors map[int]domain.Instructor
	reviews     []domain.CommunityReview

	mu  sync.Mutex
	rng *rand.Rand
}

// New loads the built-in catalog. A nil rng is seeded randomly.
func New(rng *rand.Rand) (*Catalog, error) {
	return Parse(defaultData, rng)
}

// Parse builds a catalog from YAML data.
func Parse(data []byte, rng *rand.Rand) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	c := &Catalog{
		subjects:    f.Subjects,
		courses:     f.Courses,
		byKey:       make(map[string]int, len(f.Courses)),
		instructors: make(map[int]domain.Instructor, len(f.Instructors)),
		reviews:     f.Reviews,
		rng:         rng,
	}
	for _, in := range f.Instructors {
		if _, dup := c.instructors[in.ID]; dup {
			return nil, fmt.Errorf("duplicate instructor id %d", in.ID)
		}
		c.instructors[in.ID] = in
	}
	for i, course := range f.Courses {
		if strings.TrimSpace(course.Key) == "" {
			return nil, fmt.Errorf("course %d has no key", i)
		}
		if _, dup := c.byKey[course.Key]; dup {
			return nil, fmt.Errorf("duplicate course key %q", course.Key)
		}
		c.byKey[course.Key] = i
	}
	return c, nil
}

// Subjects returns the subject filters in display order, starting with All.
func (c *Catalog) Subjects() []string {
	return slices.Clone(c.subjects)
}

// Search filters by subject (case-insensitive, All or empty disables it) and
// then by a free-text match on title, instructor and subject.
func (c *Catalog) Search(ctx context.Context, query, subject string, limit int) ([]domain.Course, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	subject = strings.TrimSpace(subject)
	query = strings.ToLower(strings.TrimSpace(query))

	out := make([]domain.Course, 0, min(limit, len(c.courses)))
	for _, course := range c.courses {
		if len(out) == limit {
			break
		}
		if subject != "" && subject != AllSubjects && !strings.EqualFold(course.Subject, subject) {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(course.Title), query) &&
			!strings.Contains(strings.ToLower(course.Instructor), query) &&
			!strings.Contains(strings.ToLower(course.Subject), query) {
			continue
		}
		out = append(out, course)
	}
	return out, nil
}

// Trending returns a random sample of courses.
func (c *Catalog) Trending(ctx context.Context, limit int) ([]domain.Course, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultTrendingLimit
	}
	return sample(c, slices.Clone(c.courses), limit), nil
}

func (c *Catalog) Course(ctx context.Context, key string) (domain.Course, error) {
	if err := ctx.Err(); err != nil {
		return domain.Course{}, err
	}
	i, ok := c.byKey[key]
	if !ok {
		return domain.Course{}, fmt.Errorf("course %q: %w", key, ErrNotFound)
	}
	return c.courses[i], nil
}

// CourseInstructors returns the instructors of a course. Unknown courses have none.
func (c *Catalog) CourseInstructors(ctx context.Context, key string) ([]domain.Instructor, error) {
	course, err := c.Course(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return []domain.Instructor{}, nil
	}
	if err != nil {
		return nil, err
	}
	if in, ok := c.instructors[course.InstructorID]; ok {
		return []domain.Instructor{in}, nil
	}
	return []domain.Instructor{}, nil
}

func (c *Catalog) Instructor(ctx context.Context, id int) (domain.Instructor, error) {
	if err := ctx.Err(); err != nil {
		return domain.Instructor{}, err
	}
	in, ok := c.instructors[id]
	if !ok {
		return domain.Instructor{}, fmt.Errorf("instructor %d: %w", id, ErrNotFound)
	}
	return in, nil
}

func (c *Catalog) InstructorCourses(ctx context.Context, id int) ([]domain.Course, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := []domain.Course{}
	for _, course := range c.courses {
		if course.InstructorID == id {
			out = append(out, course)
		}
	}
	return out, nil
}

// CommunityReviews returns a random sample of reviews. The mocked catalog does
// not partition reviews by course.
func (c *Catalog) CommunityReviews(ctx context.Context, _ string, limit int) ([]domain.CommunityReview, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultReviewLimit
	}
	return sample(c, slices.Clone(c.reviews), limit), nil
}

// Recommendations returns a random sample of courses whose keys are in
// neither seen nor exclude.
func (c *Catalog) Recommendations(ctx context.Context, seen, exclude []string, limit int) ([]domain.Course, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultRecommendationLimit
	}
	skip := make(map[string]struct{}, len(seen)+len(exclude))
	for _, key := range seen {
		skip[key] = struct{}{}
	}
	for _, key := range exclude {
		skip[key] = struct{}{}
	}
	candidates := make([]domain.Course, 0, len(c.courses))
	for _, course := range c.courses {
		if _, ok := skip[course.Key]; !ok {
			candidates = append(candidates, course)
		}
	}
	return sample(c, candidates, limit), nil
}

// Preview returns the preview video id for key, or FallbackPreviewID.
func (c *Catalog) Preview(key string) string {
	if i, ok := c.byKey[key]; ok && c.courses[i].PreviewVideoID != "" {
		return c.courses[i].PreviewVideoID
	}
	return FallbackPreviewID
}

func sample[T any](c *Catalog, items []T, limit int) []T {
	c.mu.Lock()
	c.rng.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
	c.mu.Unlock()
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}
