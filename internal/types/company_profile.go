// Package types provides type definitions for structured data used throughout the company-insights service.
//
//nolint:revive // types is a standard Go package name pattern
package types

// NotSpecified is the sentinel the model is asked to use for unknown string fields.
const NotSpecified = "Not specified"

// CompanyInfo represents the business profile extracted from a company website
type CompanyInfo struct {
	Industry                 string      `json:"industry"`
	CompanySize              string      `json:"company_size"`
	Location                 string      `json:"location"`
	CoreProductsServices     []string    `json:"core_products_services"`
	UniqueSellingProposition string      `json:"unique_selling_proposition"`
	TargetAudience           string      `json:"target_audience"`
	ContactInfo              ContactInfo `json:"contact_info"`
}

// ContactInfo holds the optional contact channels found on the site.
// Social media maps a network name (linkedin, twitter, ...) to a profile URL or nil.
type ContactInfo struct {
	Email       *string            `json:"email"`
	Phone       *string            `json:"phone"`
	SocialMedia map[string]*string `json:"social_media"`
}

// ExtractedAnswer is one answered question from an analysis request
type ExtractedAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// AnalysisResult is the full output of a website analysis.
type AnalysisResult struct {
	URL               string            `json:"url"`
	AnalysisTimestamp string            `json:"analysis_timestamp"`
	CompanyInfo       CompanyInfo       `json:"company_info"`
	ExtractedAnswers  []ExtractedAnswer `json:"extracted_answers"`
}

// Normalize fills nil collections so they encode as [] and {} rather than null.
func (c *CompanyInfo) Normalize() {
	if c.CoreProductsServices == nil {
		c.CoreProductsServices = []string{}
	}
	if c.ContactInfo.SocialMedia == nil {
		c.ContactInfo.SocialMedia = map[string]*string{}
	}
}
