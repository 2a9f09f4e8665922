package domain

// DefaultMonitoredURLs is the starter fleet loaded by "pages seed" when no
// file is given.
var DefaultMonitoredURLs = []string{
	"https://dor.wa.gov",
	"https://dor.wa.gov/taxes-rates",
	"https://dor.wa.gov/forms-publications",
	"https://dor.wa.gov/about/news-releases",
	"https://dor.wa.gov/taxes-rates/business-occupation-tax",
	"https://dor.wa.gov/taxes-rates/use-tax",
	"https://dor.wa.gov/taxes-rates/property-tax",
	"https://dor.wa.gov/taxes-rates/other-taxes",
	"https://dor.wa.gov/taxes-rates/sales-use-tax-rates",
	"https://dor.wa.gov/taxes-rates/retail-sales-tax/marketplace-fairness-leveling-playing-field",
	"https://dor.wa.gov/taxes-rates/business-occupation-tax/business-occupation-tax-classifications",
	"https://dor.wa.gov/taxes-rates/retail-sales-tax/services-newly-subject-retail-sales-tax",
	"https://dor.wa.gov/taxes-rates/retail-sales-tax/services-newly-subject-retail-sales-tax/why-am-i-being-charged-sales-tax-now",
	"https://dor.wa.gov/taxes-rates/retail-sales-tax/services-newly-subject-retail-sales-tax/frequently-asked-questions-about-essb-5814",
	"https://dor.wa.gov/taxes-rates/retail-sales-tax/services-newly-subject-retail-sales-tax/essb-5814-interim-guidance-and-upcoming-rule-making",
	"https://dor.wa.gov/taxes-rates/retail-sales-tax/services-newly-subject-retail-sales-tax/advertising-services",
	"https://dor.wa.gov/taxes-rates/retail-sales-tax/services-newly-subject-retail-sales-tax/information-technology-services-0",
	"https://dor.wa.gov/taxes-rates/retail-sales-tax/services-newly-subject-retail-sales-tax/custom-website-development",
	"https://dor.wa.gov/taxes-rates/retail-sales-tax/services-newly-subject-retail-sales-tax/live-presentations",
	"https://dor.wa.gov/taxes-rates/retail-sales-tax/services-newly-subject-retail-sales-tax/investigation-security-and-armored-car-services",
	"https://dor.wa.gov/taxes-rates/retail-sales-tax/services-newly-subject-retail-sales-tax/temporary-staffing-services",
	"https://dor.wa.gov/taxes-rates/retail-sales-tax/services-newly-subject-retail-sales-tax/sales-custom-software-and-customization-prewritten-software",
	"https://dor.wa.gov/laws-rules/interim_guidance_statements/interim-guidance-statement-regarding-changes-made-essb-5814-information-technology-services",
	"https://dor.wa.gov/laws-rules/interim-guidance-statement-regarding-contracts-existing-prior-october-1-2025-and-changes-made-essb",
	"https://dor.wa.gov/laws-rules/interim_guidance_statements/interim-guidance-statement-regarding-changes-made-essb-5814-advertising-services",
	"https://dor.wa.gov/laws-rules/interim_guidance_statements/interim-guidance-statement-regarding-changes-made-essb-5814-custom-software",
	"https://dor.wa.gov/laws-rules/interim_guidance_statements/interim-guidance-statement-regarding-changes-made-essb-5814-live-presentations",
	"https://dor.wa.gov/laws-rules/interim_guidance_statements/interim-guidance-statement-regarding-changes-made-essb-5814-temporary-staffing-services",
	"https://dor.wa.gov/taxes-rates/retail-sales-tax/sales-and-use-tax-tools",
	"https://dor.wa.gov/education/industry-guides",
	"https://dor.wa.gov/education/industry-guides/construction",
	"https://dor.wa.gov/education/industry-guides/real-estate-industry",
	"https://dor.wa.gov/education/industry-guides/nonprofit-organizations",
	"https://dor.wa.gov/forms-publications/publications-subject",
	"https://dor.wa.gov/get-form-or-publication",
	"https://dor.wa.gov/laws-rules",
	"https://dor.wa.gov/taxes-rates/tax-incentives",
	"https://dor.wa.gov/taxes-rates/tax-incentives/credits",
	"https://dor.wa.gov/taxes-rates/other-taxes/real-estate-excise-tax",
	"https://dor.wa.gov/washington-tax-decisions",
}
