package record

// DefaultCaseTypes is the catalog written on first install.
var DefaultCaseTypes = []string{
	"Other",
	"Claim Reason",
	"Counterfeit",
	"Seller Status",
	"MSS Check",
	"ASIN Check",
	"Return Request",
	"Abort-PIV",
	"Abort-MULTI",
	"Abort-NEW",
	"Abort-OTHER",
	"Investigation",
	"Escalation",
	"Appeal",
	"Follow-Up",
	"Documentation",
	"Refund",
	"Replacement",
	"Shipping Issue",
	"Payment Issue",
	"Feedback Removal",
	"Account Health",
	"Policy Violation",
	"Seller Issue Refund",
	"General Inquiry",
}

// SeedCaseTypes returns a copy of override, or of DefaultCaseTypes when override is empty.
func SeedCaseTypes(override []string) []string {
	src := DefaultCaseTypes
	if len(override) > 0 {
		src = override
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}
