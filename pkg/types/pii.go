// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// PiiType classifies a detected entity. The set is closed; recognizers
// that find something outside it report PiiOther.
type PiiType string

const (
	PiiPersonName    PiiType = "person_name"
	PiiPhone         PiiType = "phone"
	PiiEmail         PiiType = "email"
	PiiNationalID    PiiType = "national_id"
	PiiPassport      PiiType = "passport"
	PiiDriverLicense PiiType = "driver_license"
	PiiFinancialAcct PiiType = "financial_account"
	PiiCardNumber    PiiType = "card_number"
	PiiAddress       PiiType = "address"
	PiiIPAddress     PiiType = "ip_address"
	PiiDateOfBirth   PiiType = "date_of_birth"
	PiiOther         PiiType = "other"
)

// Sensitivity is the coarse risk class of a PiiType.
type Sensitivity string

const (
	SensitivityHigh   Sensitivity = "high"
	SensitivityMedium Sensitivity = "medium"
	SensitivityLow    Sensitivity = "low"
)

var piiSensitivity = map[PiiType]Sensitivity{
	PiiNationalID:    SensitivityHigh,
	PiiPassport:      SensitivityHigh,
	PiiDriverLicense: SensitivityHigh,
	PiiFinancialAcct: SensitivityHigh,
	PiiCardNumber:    SensitivityHigh,
	PiiPhone:         SensitivityMedium,
	PiiEmail:         SensitivityMedium,
	PiiAddress:       SensitivityMedium,
	PiiDateOfBirth:   SensitivityMedium,
	PiiPersonName:    SensitivityLow,
	PiiIPAddress:     SensitivityLow,
	PiiOther:         SensitivityLow,
}

// piiAliases maps labels used by upstream recognizers onto PiiType.
var piiAliases = map[string]PiiType{
	"name":                  PiiPersonName,
	"person":                PiiPersonName,
	"phone_number":          PiiPhone,
	"mobile":                PiiPhone,
	"email_address":         PiiEmail,
	"resident_id":           PiiNationalID,
	"resident_registration": PiiNationalID,
	"rrn":                   PiiNationalID,
	"ssn":                   PiiNationalID,
	"account":               PiiFinancialAcct,
	"bank_account":          PiiFinancialAcct,
	"credit_card":           PiiCardNumber,
	"card":                  PiiCardNumber,
	"ip":                    PiiIPAddress,
	"dob":                   PiiDateOfBirth,
	"birth_date":            PiiDateOfBirth,
}

// ParsePiiType normalizes a recognizer label. Unknown labels map to
// PiiOther so that the entity is still masked under the default policy.
func ParsePiiType(s string) PiiType {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "-", "_")
	key = strings.ReplaceAll(key, " ", "_")
	if _, ok := piiSensitivity[PiiType(key)]; ok {
		return PiiType(key)
	}
	if t, ok := piiAliases[key]; ok {
		return t
	}
	return PiiOther
}

// Sensitivity returns the risk class of t.
func (t PiiType) Sensitivity() Sensitivity {
	if s, ok := piiSensitivity[t]; ok {
		return s
	}
	return SensitivityLow
}

// Describe returns a short human phrase for t, used in retrieval queries
// and reasoning text.
func (t PiiType) Describe() string {
	switch t {
	case PiiPersonName:
		return "person name"
	case PiiPhone:
		return "personal phone number"
	case PiiEmail:
		return "email address"
	case PiiNationalID:
		return "national identification number"
	case PiiPassport:
		return "passport number"
	case PiiDriverLicense:
		return "driver license number"
	case PiiFinancialAcct:
		return "financial account number"
	case PiiCardNumber:
		return "payment card number"
	case PiiAddress:
		return "postal address"
	case PiiIPAddress:
		return "IP address"
	case PiiDateOfBirth:
		return "date of birth"
	default:
		return "personal information"
	}
}

// Coordinate is one OCR-observed occurrence of an entity.
type Coordinate struct {
	PageIndex int    `json:"page_index" yaml:"page_index"`
	BBox      Rect   `json:"bbox" yaml:"bbox"`
	FieldText string `json:"field_text" yaml:"field_text"`
}

// Entity is a detected span of sensitive text. Offsets are rune offsets
// into the full extracted text. Coordinates, when present, come from OCR
// and take precedence over text search.
type Entity struct {
	Text        string       `json:"text" yaml:"text"`
	Type        PiiType      `json:"type" yaml:"type"`
	Score       float64      `json:"score" yaml:"score"`
	StartChar   int          `json:"start_char" yaml:"start_char"`
	EndChar     int          `json:"end_char" yaml:"end_char"`
	Coordinates []Coordinate `json:"coordinates,omitempty" yaml:"coordinates,omitempty"`
}

// Validate checks the structural invariants of an Entity.
func (e Entity) Validate() error {
	if e.Text == "" {
		return fmt.Errorf("entity text is empty")
	}
	if e.StartChar < 0 || e.StartChar >= e.EndChar {
		return fmt.Errorf("entity offsets [%d,%d) invalid", e.StartChar, e.EndChar)
	}
	if e.Score < 0 || e.Score > 1 {
		return fmt.Errorf("entity score %f out of range [0,1]", e.Score)
	}
	return nil
}
