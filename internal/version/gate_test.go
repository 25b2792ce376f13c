package version_test

import (
	"testing"

	"github.com/leozw/zone-health/internal/version"

	. "github.com/onsi/gomega"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name         string
		min          string
		max          string
		reported     []string
		wantEligible bool
		wantReported string
	}{
		{name: "no bounds", reported: []string{"1.0.0"}, wantEligible: true},
		{name: "inside range", min: "4.2.0", max: "4.2.10", reported: []string{"4.2.3", "4.2.9"}, wantEligible: true},
		{name: "at both bounds", min: "4.2.0", max: "4.2.10", reported: []string{"4.2.0", "4.2.10"}, wantEligible: true},
		{name: "above max", min: "4.2.0", max: "4.2.10", reported: []string{"4.2.11"}, wantEligible: false, wantReported: "4.2.11"},
		{name: "below min", min: "4.2.0", max: "4.2.10", reported: []string{"4.1.12", "4.2.5"}, wantEligible: false, wantReported: "4.1.12"},
		{name: "max only, below max", max: "4.3.0", reported: []string{"4.2.8"}, wantEligible: true},
		{name: "max only, above max", max: "4.3.0", reported: []string{"4.2.8", "4.3.1"}, wantEligible: false, wantReported: "4.3.1"},
		{name: "min only", min: "4.3.0", reported: []string{"4.2.8"}, wantEligible: false, wantReported: "4.2.8"},
		{name: "numeric segment ordering", min: "4.2.9", reported: []string{"4.2.10"}, wantEligible: true},
		{name: "tolerant parsing", min: "4.3", reported: []string{"v4.3.1"}, wantEligible: true},
		{name: "unordered reported versions", min: "4.2.0", max: "4.2.10", reported: []string{"4.2.11", "4.2.1"}, wantEligible: false, wantReported: "4.2.11"},
		{name: "nothing parseable", min: "4.2.0", reported: []string{"unknown"}, wantEligible: true},
		{name: "no reported versions", min: "4.2.0", max: "4.2.10", wantEligible: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)

			got, err := version.Evaluate(tt.min, tt.max, tt.reported)
			g.Expect(err).ToNot(HaveOccurred())
			g.Expect(got.Eligible).To(Equal(tt.wantEligible))
			g.Expect(got.Reported).To(Equal(tt.wantReported))
		})
	}
}

func TestEvaluate_InvalidBound(t *testing.T) {
	g := NewWithT(t)

	_, err := version.Evaluate("four", "", []string{"4.2.0"})
	g.Expect(err).To(HaveOccurred())
}

func TestEligibility_Message(t *testing.T) {
	g := NewWithT(t)

	got, err := version.Evaluate("4.2.0", "4.2.10", []string{"4.2.11"})
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(got.Message()).To(Equal(
		"This check is unavailable because the server version (4.2.11) is out of range (4.2.0 - 4.2.10).",
	))

	open, err := version.Evaluate("4.3.0", "", []string{"4.2.0"})
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(open.Message()).To(ContainSubstring("(4.3.0 - *)"))
}

func TestValidateRange(t *testing.T) {
	g := NewWithT(t)

	g.Expect(version.ValidateRange("", "")).To(Succeed())
	g.Expect(version.ValidateRange("4.2.0", "4.2.10")).To(Succeed())
	g.Expect(version.ValidateRange("4.2.10", "4.2.0")).ToNot(Succeed())
	g.Expect(version.ValidateRange("x", "")).ToNot(Succeed())
}
