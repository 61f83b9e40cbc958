package mapper

import (
	"strings"

	"github.com/polysight/marketgate/internal/domain"
)

// resolutionKeywords maps resolution-source substrings to categories. Checked
// before the question-text table because the resolution source is the more
// reliable signal.
var resolutionKeywords = []struct {
	category domain.Category
	terms    []string
}{
	{domain.CategoryPolitics, []string{"election", "politics", "trump", "biden", "congress", "senate"}},
	{domain.CategorySports, []string{"sports", "game", "nba", "nfl", "mlb", "soccer"}},
	{domain.CategoryCrypto, []string{"crypto", "bitcoin", "ethereum", "defi", "nft", "web3"}},
	{domain.CategoryTechnology, []string{"tech", "ai", "apple", "google", "microsoft", "meta"}},
	{domain.CategoryFinance, []string{"finance", "economy", "stock", "fed", "inflation", "interest"}},
	{domain.CategoryEntertainment, []string{"movie", "entertainment", "oscars", "music", "celebrity"}},
	{domain.CategoryEnvironment, []string{"weather", "climate", "environment", "energy"}},
	{domain.CategoryScience, []string{"science", "space", "nasa", "health", "covid", "medicine"}},
	{domain.CategoryWorldEvents, []string{"world", "war", "ukraine", "china", "europe", "asia"}},
}

// questionKeywords maps question-text substrings to categories, used when the
// record carries neither an explicit category nor a matching resolution
// source.
var questionKeywords = []struct {
	category domain.Category
	terms    []string
}{
	{domain.CategoryPolitics, []string{"trump", "biden", "election", "president", "senate", "congress", "vote", "democrat", "republican"}},
	{domain.CategorySports, []string{"nba", "nfl", "mlb", "super bowl", "championship", "tournament", "player", "team"}},
	{domain.CategoryCrypto, []string{"bitcoin", "ethereum", "crypto", "btc", "eth", "solana", "defi", "nft", "blockchain"}},
	{domain.CategoryTechnology, []string{"ai", "artificial intelligence", "apple", "google", "meta", "microsoft", "tech", "software"}},
	{domain.CategoryFinance, []string{"stock", "economy", "fed", "inflation", "interest rate", "dollar", "bank"}},
	{domain.CategoryEntertainment, []string{"oscar", "movie", "award", "celebrity", "music", "album", "netflix"}},
	{domain.CategoryScience, []string{"space", "nasa", "covid", "vaccine", "health", "medicine", "research", "discovery"}},
	{domain.CategoryWorldEvents, []string{"war", "ukraine", "russia", "china", "middle east", "conflict", "crisis"}},
	{domain.CategoryEnvironment, []string{"climate", "weather", "temperature", "pollution", "carbon", "renewable"}},
}

// knownCategories folds explicit upstream category hints into the normalized
// enumeration, case-insensitively.
var knownCategories = map[string]domain.Category{
	"politics":      domain.CategoryPolitics,
	"sports":        domain.CategorySports,
	"crypto":        domain.CategoryCrypto,
	"technology":    domain.CategoryTechnology,
	"tech":          domain.CategoryTechnology,
	"finance":       domain.CategoryFinance,
	"entertainment": domain.CategoryEntertainment,
	"science":       domain.CategoryScience,
	"world events":  domain.CategoryWorldEvents,
	"environment":   domain.CategoryEnvironment,
}

// DeriveCategory resolves the category for an upstream record.
//
// Priority: explicit category field, then resolution-source keywords, then
// question-text keywords, then the General bucket.
func DeriveCategory(m *domain.UpstreamMarket) domain.Category {
	if m.Category != "" {
		if c, ok := knownCategories[strings.ToLower(strings.TrimSpace(m.Category))]; ok {
			return c
		}
		return domain.CategoryGeneral
	}

	if m.ResolutionSource != "" {
		source := strings.ToLower(m.ResolutionSource)
		for _, entry := range resolutionKeywords {
			for _, term := range entry.terms {
				if strings.Contains(source, term) {
					return entry.category
				}
			}
		}
	}

	question := strings.ToLower(m.Question)
	for _, entry := range questionKeywords {
		for _, term := range entry.terms {
			if strings.Contains(question, term) {
				return entry.category
			}
		}
	}

	return domain.CategoryGeneral
}
