package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mistagar/credinsight/internal/customer"
)

func sampleCustomer() *customer.Customer {
	return &customer.Customer{
		ID:               "cus_test1",
		FullName:         "Ada Obi",
		Email:            "ada.obi@example.com",
		PhoneNumber:      "+2348012345678",
		Address:          "12 Marina Road, Lagos",
		NationalIDNumber: "A1234567",
		DocumentType:     "passport",
		IsVerified:       true,
	}
}

func TestRiskAssessmentEmbedsDataAndFormat(t *testing.T) {
	c := sampleCustomer()
	txns := []*customer.Transaction{{
		ID:                 "txn_1",
		CustomerID:         c.ID,
		Amount:             decimal.NewFromInt(250),
		DestinationAccount: "9900112233",
		Timestamp:          time.Now(),
	}}
	logins := []*customer.LoginActivity{{
		ID:         "log_1",
		CustomerID: c.ID,
		Location:   "Lagos",
		IPAddress:  "10.0.0.3",
	}}

	p := RiskAssessment(c, txns, logins)

	for _, want := range []string{
		"Ada Obi",
		"9900112233",
		"Lagos",
		"Risk Score:",
		"Risk Level: Low / Medium / High",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestTransactionAnalysisDemandsStrictJSON(t *testing.T) {
	candidate := &customer.Transaction{
		ID:         "txn_new",
		CustomerID: "cus_test1",
		Amount:     decimal.NewFromInt(50000),
	}

	p := TransactionAnalysis(nil, candidate)

	for _, want := range []string{
		"txn_new",
		`"healthStatus"`,
		`"suspicionLevel"`,
		`"variationFromNorm"`,
		`"explanation"`,
		"mild, moderate, severe, critical",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestKYCCrossCheckEmbedsPayload(t *testing.T) {
	p := KYCCrossCheck(`{"fullName":"Ada Obi"}`)
	if !strings.Contains(p, `{"fullName":"Ada Obi"}`) {
		t.Error("prompt should embed the KYC JSON verbatim")
	}
	if !strings.Contains(p, "healthScore") {
		t.Error("prompt should pin the reply format")
	}
}

func TestLocationCheckAndPersonalInfo(t *testing.T) {
	logins := []*customer.LoginActivity{{ID: "log_1", Location: "Abuja", UsedVPNOrProxy: true}}
	if p := LocationCheck(logins); !strings.Contains(p, "Abuja") {
		t.Error("location prompt should embed login data")
	}
	if p := PersonalInfo(sampleCustomer()); !strings.Contains(p, "ada.obi@example.com") {
		t.Error("personal info prompt should embed the customer record")
	}
}
