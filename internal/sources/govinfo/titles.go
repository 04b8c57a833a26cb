package govinfo

import (
	"sort"
	"strings"
	"unicode"
)

type uscTitle struct {
	Num      string
	Name     string
	Keywords []string
}

// usCodeTitles maps every US Code title to the query keywords that make it
// worth crawling. Coverage is heuristic.
var usCodeTitles = []uscTitle{
	{"1", "GENERAL PROVISIONS", []string{"general", "provisions"}},
	{"2", "THE CONGRESS", []string{"congress", "legislative"}},
	{"3", "THE PRESIDENT", []string{"president", "executive"}},
	{"4", "FLAG AND SEAL, SEAT OF GOVERNMENT, AND THE STATES", []string{"flag", "states"}},
	{"5", "GOVERNMENT ORGANIZATION AND EMPLOYEES", []string{"government", "employees", "privacy", "federal", "agency"}},
	{"6", "DOMESTIC SECURITY", []string{"security", "homeland", "terrorism"}},
	{"7", "AGRICULTURE", []string{"agriculture", "farming", "food"}},
	{"8", "ALIENS AND NATIONALITY", []string{"immigration", "aliens", "citizenship"}},
	{"9", "ARBITRATION", []string{"arbitration", "dispute"}},
	{"10", "ARMED FORCES", []string{"military", "defense", "armed forces"}},
	{"11", "BANKRUPTCY", []string{"bankruptcy", "insolvency"}},
	{"12", "BANKS AND BANKING", []string{"banking", "banks", "financial"}},
	{"13", "CENSUS", []string{"census", "population"}},
	{"14", "COAST GUARD", []string{"coast guard", "maritime"}},
	{"15", "COMMERCE AND TRADE", []string{"commerce", "trade", "business", "consumer", "privacy", "data", "credit", "financial", "coppa", "glba", "fcra", "artificial intelligence", "ai", "machine learning"}},
	{"16", "CONSERVATION", []string{"conservation", "environment"}},
	{"17", "COPYRIGHTS", []string{"copyright", "intellectual property", "ip"}},
	{"18", "CRIMES AND CRIMINAL PROCEDURE", []string{"crime", "criminal", "privacy", "wiretap", "ecpa", "dppa"}},
	{"19", "CUSTOMS DUTIES", []string{"customs", "duties", "tariff"}},
	{"20", "EDUCATION", []string{"education", "school", "ferpa", "student"}},
	{"21", "FOOD AND DRUGS", []string{"food", "drug", "fda"}},
	{"22", "FOREIGN RELATIONS AND INTERCOURSE", []string{"foreign", "diplomatic"}},
	{"23", "HIGHWAYS", []string{"highway", "transportation"}},
	{"24", "HOSPITALS AND ASYLUMS", []string{"hospital", "asylum"}},
	{"25", "INDIANS", []string{"indian", "tribal", "native"}},
	{"26", "INTERNAL REVENUE CODE", []string{"tax", "revenue", "irs"}},
	{"27", "INTOXICATING LIQUORS", []string{"alcohol", "liquor"}},
	{"28", "JUDICIARY AND JUDICIAL PROCEDURE", []string{"judiciary", "court", "judicial"}},
	{"29", "LABOR", []string{"labor", "employment", "work"}},
	{"30", "MINERAL LANDS AND MINING", []string{"mining", "mineral"}},
	{"31", "MONEY AND FINANCE", []string{"money", "finance", "treasury"}},
	{"32", "NATIONAL GUARD", []string{"national guard", "militia"}},
	{"33", "NAVIGATION AND NAVIGABLE WATERS", []string{"navigation", "water", "maritime"}},
	{"34", "NAVY", []string{"navy", "naval"}},
	{"35", "PATENTS", []string{"patent", "invention"}},
	{"36", "PATRIOTIC AND NATIONAL OBSERVANCES, CEREMONIES, AND ORGANIZATIONS", []string{"patriotic", "observance"}},
	{"37", "PAY AND ALLOWANCES OF THE UNIFORMED SERVICES", []string{"pay", "military pay"}},
	{"38", "VETERANS BENEFITS", []string{"veteran", "benefits"}},
	{"39", "POSTAL SERVICE", []string{"postal", "mail"}},
	{"40", "PUBLIC BUILDINGS, PROPERTY, AND WORKS", []string{"public building", "property"}},
	{"41", "PUBLIC CONTRACTS", []string{"contract", "procurement"}},
	{"42", "THE PUBLIC HEALTH AND WELFARE", []string{"health", "welfare", "hipaa", "medical", "privacy"}},
	{"43", "PUBLIC LANDS", []string{"public land", "land"}},
	{"44", "PUBLIC PRINTING AND DOCUMENTS", []string{"printing", "document"}},
	{"45", "RAILROADS", []string{"railroad", "rail"}},
	{"46", "SHIPPING", []string{"shipping", "vessel"}},
	{"47", "TELECOMMUNICATIONS", []string{"telecommunications", "communication", "fcc", "technology", "artificial intelligence", "ai"}},
	{"48", "TERRITORIES AND INSULAR POSSESSIONS", []string{"territory", "island"}},
	{"49", "TRANSPORTATION", []string{"transportation", "transit"}},
	{"50", "WAR AND NATIONAL DEFENSE", []string{"war", "defense", "national security", "artificial intelligence", "ai", "technology"}},
	{"51", "NATIONAL AND COMMERCIAL SPACE PROGRAMS", []string{"space", "nasa"}},
	{"52", "VOTING AND ELECTIONS", []string{"voting", "election"}},
	{"53", "SMALL BUSINESS", []string{"small business", "sba"}},
	{"54", "NATIONAL PARK SERVICE AND RELATED PROGRAMS", []string{"park", "national park"}},
}

// relevantTitles returns the titles whose keywords occur in query as whole
// words (or whose name contains the query's words), most keyword hits first.
// Ties keep table order.
func relevantTitles(query string) []uscTitle {
	q := words(query)
	if len(q) == 0 {
		return nil
	}
	type scored struct {
		t     uscTitle
		score int
	}
	var hits []scored
	for _, t := range usCodeTitles {
		score := 0
		for _, kw := range t.Keywords {
			if containsPhrase(q, words(kw)) {
				score++
			}
		}
		if containsPhrase(words(t.Name), q) {
			score++
		}
		if score > 0 {
			hits = append(hits, scored{t, score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	out := make([]uscTitle, len(hits))
	for i, h := range hits {
		out[i] = h.t
	}
	return out
}

// words lower-cases s and splits it on anything that is not a letter or digit.
func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// containsPhrase reports whether phrase occurs as a contiguous word sequence
// in text.
func containsPhrase(text, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(text) {
		return false
	}
	for i := 0; i+len(phrase) <= len(text); i++ {
		match := true
		for j, w := range phrase {
			if !sameWord(text[i+j], w) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// sameWord matches w against keyword kw, accepting regular plurals.
func sameWord(w, kw string) bool {
	switch w {
	case kw, kw + "s", kw + "es":
		return true
	}
	return strings.HasSuffix(kw, "y") && w == kw[:len(kw)-1]+"ies"
}
