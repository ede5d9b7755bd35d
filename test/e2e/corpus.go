// Package e2e provides end-to-end tests with a generated people corpus and typo queries.
package e2e

import (
	"fmt"
	"strings"

	"github.com/hyperjump/kensaku/internal/models"
)

// Person is a record in the E2E corpus.
type Person struct {
	ID      string
	Name    string
	City    string
	Company string
}

// Fields returns the person as record fields.
func (p Person) Fields() map[string]string {
	return map[string]string{"name": p.Name, "city": p.City, "company": p.Company}
}

// QueryTestCase defines a query and the record ID(s) that must appear in search results.
type QueryTestCase struct {
	Query       string
	Fields      []string
	ExpectedIDs []string
	Description string
}

// Corpus holds people and query test cases for E2E tests.
type Corpus struct {
	People       []Person
	TestCases    []QueryTestCase
	TotalRecords int
	TotalQueries int
}

var (
	firstNames = []string{
		"John", "Mary", "Robert", "Patricia", "Michael", "Jennifer", "William", "Linda", "David", "Elizabeth",
		"Richard", "Barbara", "Joseph", "Susan", "Thomas", "Jessica", "Charles", "Sarah", "Christopher", "Karen",
		"Daniel", "Nancy", "Matthew", "Lisa", "Anthony", "Betty", "Mark", "Margaret", "Donald", "Sandra",
		"Steven", "Ashley", "Paul", "Kimberly", "Andrew", "Emily", "Joshua", "Donna", "Kenneth", "Michelle",
		"Kevin", "Dorothy", "Brian", "Carol", "George", "Amanda", "Edward", "Melissa", "Ronald", "Deborah",
	}
	surnames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis", "Rodriguez", "Martinez",
		"Hernandez", "Lopez", "Gonzalez", "Wilson", "Anderson", "Thomas", "Taylor", "Moore", "Jackson", "Martin",
		"Leclerc", "Perez", "Thompson", "White", "Harris", "Sanchez", "Clark", "Ramirez", "Lewis", "Robinson",
		"Walker", "Youngblood", "Allenby", "Kingsley", "Wright", "Scott", "Torres", "Nguyen", "Hillman", "Flores",
		"Takahashi", "Yamamoto", "Nakamura", "Kobayashi", "Watanabe", "Halloran", "Campbell", "Mitchell", "Carter", "Roberts",
	}
	cities    = []string{"Osaka", "Tokyo", "Kyoto", "Nagoya", "Sapporo", "Fukuoka", "Kobe", "Sendai"}
	companies = []string{"Hyperjump", "Acme", "Globex", "Initech", "Umbrella", "Stark", "Wayne", "Tyrell"}
)

// BuildCorpus returns a corpus with one person per surname and typo, case and
// exact query test cases for every fifth person.
func BuildCorpus() *Corpus {
	people := buildPeople(len(surnames))
	cases := buildQueryTestCases(people)
	return &Corpus{
		People:       people,
		TestCases:    cases,
		TotalRecords: len(people),
		TotalQueries: len(cases),
	}
}

func buildPeople(n int) []Person {
	out := make([]Person, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Person{
			ID:      fmt.Sprintf("e2e-person-%03d", i+1),
			Name:    firstNames[i%len(firstNames)] + " " + surnames[i],
			City:    cities[i%len(cities)],
			Company: companies[(i/len(cities))%len(companies)],
		})
	}
	return out
}

// Typo swaps the second and third letters of the last word of name.
func Typo(name string) string {
	i := strings.LastIndexByte(name, ' ') + 1
	b := []byte(name)
	if len(b)-i < 4 {
		return name
	}
	b[i+1], b[i+2] = b[i+2], b[i+1]
	return string(b)
}

func buildQueryTestCases(people []Person) []QueryTestCase {
	var cases []QueryTestCase
	for i := 0; i < len(people); i += 5 {
		p := people[i]
		cases = append(cases,
			QueryTestCase{
				Query:       p.Name,
				ExpectedIDs: []string{p.ID},
				Description: fmt.Sprintf("exact name %q finds %s", p.Name, p.ID),
			},
			QueryTestCase{
				Query:       strings.ToUpper(p.Name),
				Fields:      []string{"name"},
				ExpectedIDs: []string{p.ID},
				Description: fmt.Sprintf("upper-case name %q finds %s", p.Name, p.ID),
			},
			QueryTestCase{
				Query:       Typo(p.Name),
				Fields:      []string{"name"},
				ExpectedIDs: []string{p.ID},
				Description: fmt.Sprintf("typo %q finds %s", Typo(p.Name), p.ID),
			},
		)
	}
	return cases
}

// ToRecordInputs converts the corpus to models.RecordInput for indexing.
func (c *Corpus) ToRecordInputs(collection string) []*models.RecordInput {
	out := make([]*models.RecordInput, len(c.People))
	for i, p := range c.People {
		out[i] = &models.RecordInput{
			ID:         p.ID,
			Collection: collection,
			Fields:     p.Fields(),
		}
	}
	return out
}
