package roster

import (
	"encoding/csv"
	"math/rand"
	"strings"
	"time"
)

type place struct {
	city, state, country string
}

// Weighted towards the home state the way real rosters are.
var generatorPlaces = []place{
	{"Honolulu", "HI", "USA"},
	{"Honolulu", "HI", "USA"},
	{"Honolulu", "HI", "USA"},
	{"Honolulu", "HI", "USA"},
	{"Kailua", "HI", "USA"},
	{"Kaneohe", "HI", "USA"},
	{"Pearl City", "HI", "USA"},
	{"Hilo", "HI", "USA"},
	{"Kahului", "HI", "USA"},
	{"Lihue", "HI", "USA"},
	{"San Francisco", "CA", "USA"},
	{"Los Angeles", "CA", "USA"},
	{"New York", "NY", "USA"},
	{"Seattle", "WA", "USA"},
	{"Austin", "TX", "USA"},
	{"Portland", "OR", "USA"},
	{"Chicago", "IL", "USA"},
	{"Miami", "FL", "USA"},
	{"Boise", "ID", "USA"},
	{"Toronto", "ON", "Canada"},
	{"Tokyo", "", "Japan"},
	{"Sydney", "NSW", "Australia"},
	{"London", "", "UK"},
	{"Singapore", "", "Singapore"},
	{"Berlin", "", "Germany"},
	{"Paris", "", "France"},
	{"", "", ""},
}

var generatorRoles = []string{
	"Software Engineer", "Frontend Developer", "Engineering Manager", "Product Lead",
	"Account Executive", "Growth Marketer", "UX Designer", "Data Analyst",
	"Strategy Consultant", "Founder & CEO", "Student", "Chef", "-",
}

var generatorIndustries = []string{
	"Software", "SaaS", "Machine Learning", "Fintech", "EdTech", "Healthcare",
	"AdTech", "Media", "Consulting", "Cybersecurity", "VR", "Tourism", "",
}

// GenerateRows builds n synthetic feed rows. The same seed always yields the
// same rows. Some rows deliberately lack a role or industry.
func GenerateRows(n int, seed int64) []RawRow {
	r := rand.New(rand.NewSource(seed))
	base := time.Date(2025, time.May, 1, 9, 0, 0, 0, time.UTC)

	rows := make([]RawRow, n)
	for i := 0; i < n; i++ {
		p := generatorPlaces[r.Intn(len(generatorPlaces))]
		confirmed := base.Add(time.Duration(r.Intn(30*24)) * time.Hour)
		rows[i] = RawRow{
			ColRole:        generatorRoles[r.Intn(len(generatorRoles))],
			ColCity:        p.city,
			ColState:       p.state,
			ColCountry:     p.country,
			ColIndustry:    generatorIndustries[r.Intn(len(generatorIndustries))],
			ColConfirmTime: confirmed.Format("2006-01-02 15:04"),
			ColLastChanged: confirmed.Add(time.Duration(r.Intn(72)) * time.Hour).Format("2006-01-02 15:04"),
		}
	}
	return rows
}

// GenerateCSV renders GenerateRows as a feed with a header line.
func GenerateCSV(n int, seed int64) string {
	columns := []string{ColRole, ColCity, ColState, ColCountry, ColIndustry, ColConfirmTime, ColLastChanged}

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	w.Write(columns)
	for _, row := range GenerateRows(n, seed) {
		record := make([]string, len(columns))
		for i, col := range columns {
			record[i] = row[col]
		}
		w.Write(record)
	}
	w.Flush()
	return sb.String()
}
