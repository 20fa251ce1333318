package form

// Option is one entry of a static choice list.
type Option struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

var (
	Genders            = []string{"male", "female", "other"}
	MaritalStatuses    = []string{"single", "married", "divorced", "widowed"}
	EmploymentStatuses = []string{"employed", "self-employed", "unemployed", "student", "retired"}
	HousingStatuses    = []string{"owned", "rented", "shelter", "homeless"}
)

var Countries = []Option{
	{Value: "AE", Label: "United Arab Emirates"},
	{Value: "US", Label: "United States"},
	{Value: "GB", Label: "United Kingdom"},
	{Value: "CA", Label: "Canada"},
	{Value: "AU", Label: "Australia"},
	{Value: "DE", Label: "Germany"},
	{Value: "FR", Label: "France"},
	{Value: "IN", Label: "India"},
	{Value: "SA", Label: "Saudi Arabia"},
	{Value: "SG", Label: "Singapore"},
}

var PhoneCountryCodes = []Option{
	{Value: "+971", Label: "+971 (UAE)"},
	{Value: "+1", Label: "+1 (US/CA)"},
	{Value: "+44", Label: "+44 (UK)"},
	{Value: "+61", Label: "+61 (AU)"},
	{Value: "+49", Label: "+49 (DE)"},
	{Value: "+33", Label: "+33 (FR)"},
	{Value: "+91", Label: "+91 (IN)"},
	{Value: "+966", Label: "+966 (SA)"},
	{Value: "+65", Label: "+65 (SG)"},
	{Value: "+86", Label: "+86 (CN)"},
}

var Currencies = []Option{
	{Value: "AED", Label: "د.إ"},
	{Value: "USD", Label: "$"},
	{Value: "GBP", Label: "£"},
	{Value: "EUR", Label: "€"},
	{Value: "CAD", Label: "C$"},
	{Value: "AUD", Label: "A$"},
	{Value: "INR", Label: "₹"},
	{Value: "SAR", Label: "﷼"},
	{Value: "SGD", Label: "S$"},
}

// OptionsFor returns the choice list for a field, if it has one.
func OptionsFor(field string) ([]Option, bool) {
	plain := func(values []string) []Option {
		out := make([]Option, len(values))
		for i, v := range values {
			out[i] = Option{Value: v, Label: v}
		}
		return out
	}
	switch field {
	case "gender":
		return plain(Genders), true
	case "maritalStatus":
		return plain(MaritalStatuses), true
	case "employmentStatus":
		return plain(EmploymentStatuses), true
	case "housingStatus":
		return plain(HousingStatuses), true
	case "country":
		return Countries, true
	case "phoneCountryCode":
		return PhoneCountryCodes, true
	case "incomeCurrency":
		return Currencies, true
	}
	return nil, false
}
