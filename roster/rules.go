package roster

import "strings"

// Other is the category every rule table falls through to.
const Other = "Other"

// Rule assigns Category when Match reports true for a lower-cased value.
type Rule struct {
	Category string
	Match    func(lower string) bool
}

// RuleSet is evaluated in order; the first matching rule wins.
type RuleSet []Rule

// Categorize returns the category of the first rule matching value, or Other.
func (rs RuleSet) Categorize(value string) string {
	lower := strings.ToLower(strings.TrimSpace(value))
	if lower == "" {
		return Other
	}
	for _, rule := range rs {
		if rule.Match(lower) {
			return rule.Category
		}
	}
	return Other
}

// Categories lists the categories of the set in priority order, followed by Other.
func (rs RuleSet) Categories() []string {
	out := make([]string, 0, len(rs)+1)
	for _, rule := range rs {
		out = append(out, rule.Category)
	}
	return append(out, Other)
}

// Keywords builds a rule that matches when any keyword is a substring of the value.
func Keywords(category string, keywords ...string) Rule {
	return Rule{
		Category: category,
		Match: func(lower string) bool {
			for _, k := range keywords {
				if strings.Contains(lower, k) {
					return true
				}
			}
			return false
		},
	}
}

// RoleRules maps free-text job titles to role groups.
var RoleRules = RuleSet{
	Keywords("Engineering", "engineer", "developer", "programmer"),
	Keywords("Management", "manager", "director", "lead"),
	Keywords("Sales", "sales", "account", "business development"),
	Keywords("Marketing", "marketing", "growth"),
	Keywords("Design", "design", "ux", "ui"),
	Keywords("Analytics", "analyst", "data"),
	Keywords("Consulting", "consultant", "advisor"),
	Keywords("Leadership", "founder", "ceo", "entrepreneur"),
	Keywords("Student", "student", "intern"),
}

// IndustryRules maps free-text industries to industry categories.
// Short keywords such as "ai" and "ar" match as plain substrings, so the
// broader categories have to stay ahead of them.
var IndustryRules = RuleSet{
	Keywords("Technology", "software", "technology", "saas"),
	Keywords("AI/ML", "ai", "machine learning", "ml"),
	Keywords("Finance", "fintech", "financial"),
	Keywords("Education", "education", "edtech"),
	Keywords("Healthcare", "health", "medical", "biotech"),
	Keywords("Marketing", "marketing", "adtech"),
	Keywords("Media", "media", "communications"),
	Keywords("Consulting", "consulting", "professional services"),
	Keywords("Cybersecurity", "cybersecurity", "security"),
	Keywords("AR/VR", "ar", "vr", "metaverse"),
}
