// Package prompt builds the instruction text sent to the AI backend for each
// analysis kind. Builders embed JSON-serialized domain data so the model sees
// the same records the deterministic scorer does.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mistagar/credinsight/internal/customer"
)

// RiskAssessment asks for a holistic risk read on a customer's profile and
// recent activity. The reply format is pinned so the response parser can
// extract a score and level from it.
func RiskAssessment(c *customer.Customer, txns []*customer.Transaction, logins []*customer.LoginActivity) string {
	var b strings.Builder
	b.WriteString("You are a financial risk analyst AI for a KYC compliance platform.\n\n")
	b.WriteString("Here is the customer's profile in JSON:\n")
	b.WriteString(mustJSON(c))
	b.WriteString("\n\nRecent transactions:\n")
	b.WriteString(mustJSON(txns))
	b.WriteString("\n\nRecent login activity:\n")
	b.WriteString(mustJSON(logins))
	b.WriteString(`

Assess the customer's overall fraud and money-laundering risk. Consider
verification status, transaction amounts relative to their history, the
spread of destination accounts, and any VPN or proxy logins from unusual
locations.

Respond with:
- Risk Score: [number between 0 and 100]
- Risk Level: Low / Medium / High
- Analysis: your reasoning in clear, simple terms
`)
	return b.String()
}

// TransactionAnalysis asks whether candidate aligns with the customer's
// transaction history. The strict four-field JSON reply is what the response
// parser expects; each field takes one of mild, moderate, severe or critical.
func TransactionAnalysis(history []*customer.Transaction, candidate *customer.Transaction) string {
	var b strings.Builder
	b.WriteString("You are a financial fraud analyst AI.\n\n")
	b.WriteString("Here is the user's transaction history:\n")
	b.WriteString(mustJSON(history))
	b.WriteString("\n\nHere is the new transaction to evaluate:\n")
	b.WriteString(mustJSON(candidate))
	b.WriteString(`

Based on the trend of the transaction history, determine whether this
transaction is suspicious or not. Explain your reasoning clearly and in
simple terms.

Respond strictly in this JSON format, with no words before or after the
JSON object:
{"healthStatus": "", "suspicionLevel": "", "variationFromNorm": "", "explanation": ""}

healthStatus, suspicionLevel and variationFromNorm must each be one of:
mild, moderate, severe, critical.
`)
	return b.String()
}

// KYCCrossCheck asks for a consistency read across the fields of a KYC
// record: does the identity hang together as a whole.
func KYCCrossCheck(kycJSON string) string {
	return fmt.Sprintf(`You are an AI trained to detect potential fraud and inconsistencies in KYC (Know Your Customer) data.

Here is the user's KYC information in JSON format:
%s

Your task is to:
- Check if the full name is commonly associated with the provided address.
- Analyze if the email seems related to the full name.
- Evaluate if the phone number prefix and format match the region.
- Check for possible mismatches between address and document type.
- Determine how consistent and trustworthy this identity looks based on the relationship between all fields.

Return your response in this JSON format:
{"healthScore": [number between 1 (bad) and 10 (excellent)], "reason": "concise explanation"}
`, kycJSON)
}

// LocationCheck asks whether the customer's login locations and IP addresses
// show suspicious overlap or impossible movement.
func LocationCheck(logins []*customer.LoginActivity) string {
	var b strings.Builder
	b.WriteString(`You are an AI fraud analyst. Analyze this customer's login activity for suspicious location patterns.

Look for:
- Logins from distant locations within short time windows.
- Repeated use of VPNs or proxies.
- IP addresses associated with known abuse ranges.

Login activity:
`)
	b.WriteString(mustJSON(logins))
	b.WriteString(`

Respond clearly with:
- Risk Level: Low / Medium / High
- Reason: your analysis
`)
	return b.String()
}

// PersonalInfo asks for red flags in the static fields of a customer record.
func PersonalInfo(c *customer.Customer) string {
	var b strings.Builder
	b.WriteString(`You are an AI fraud detection expert for KYC verification.

Here is a user's KYC information in JSON:
`)
	b.WriteString(mustJSON(c))
	b.WriteString(`

Your job is to detect red flags. Consider the following:
- Is the address realistic for the given region?
- Does the email domain look disposable (like mailinator.com, tempmail.com)?
- Is the name suspiciously generic or fabricated?
- Does the national ID format match the document type?

If anything looks suspicious, explain clearly. If not, say everything looks good.

Respond in a clear, short format like:
- Valid: Yes/No
- Reason: ...
`)
	return b.String()
}

// mustJSON never fails for the domain structs passed here; on the impossible
// error it degrades to an empty object rather than panicking mid-prompt.
func mustJSON(v any) string {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(out)
}
