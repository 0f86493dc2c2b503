package domain

import (
	"fmt"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// CRAChoice grades a controversy incident.
type CRAChoice int

const (
	CRANoIndication CRAChoice = 0
	CRAHigh         CRAChoice = 1
	CRASignificant  CRAChoice = 2
	CRACritical     CRAChoice = 3
)

func (c CRAChoice) String() string {
	switch c {
	case CRAHigh:
		return "High"
	case CRASignificant:
		return "Significant"
	case CRACritical:
		return "Critical"
	default:
		return "No indication"
	}
}

// ParseCRAChoice maps the vendor's severity label onto a CRAChoice.
// A numeric grade ("3") is accepted too. Empty and unknown labels mean
// no indication.
func ParseCRAChoice(s string) CRAChoice {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil && n >= int(CRANoIndication) && n <= int(CRACritical) {
		return CRAChoice(n)
	}
	switch s {
	case "High":
		return CRAHigh
	case "Significant":
		return CRASignificant
	case "Critical":
		return CRACritical
	default:
		return CRANoIndication
	}
}

// UnmarshalBSONValue decodes a stored grade or a vendor label. Imports
// carry whatever the feed delivered: an int, a float from CSV inference,
// or "Critical".
func (c *CRAChoice) UnmarshalBSONValue(typ byte, data []byte) error {
	rv := bson.RawValue{Type: bson.Type(typ), Value: data}
	var n int64
	switch rv.Type {
	case bson.TypeNull, bson.TypeUndefined:
		*c = CRANoIndication
		return nil
	case bson.TypeString:
		*c = ParseCRAChoice(rv.StringValue())
		return nil
	case bson.TypeInt32:
		n = int64(rv.Int32())
	case bson.TypeInt64:
		n = rv.Int64()
	case bson.TypeDouble:
		f := rv.Double()
		if f != float64(int64(f)) {
			return fmt.Errorf("CRA grade %v is not a whole number", f)
		}
		n = int64(f)
	default:
		return fmt.Errorf("cannot decode %s into a CRA grade", rv.Type)
	}
	if n < int64(CRANoIndication) || n > int64(CRACritical) {
		return fmt.Errorf("CRA grade %d out of range", n)
	}
	*c = CRAChoice(n)
	return nil
}

// CRAItem is a single negative criterion as rated by the vendor.
type CRAItem struct {
	Severity           string  `bson:"severity,omitempty" json:"severity,omitempty"` // "", "High", "Significant", "Critical"
	IncorporationScale float64 `bson:"incorporation_scale" json:"incorporation_scale"`
}

// IsAcceptable is false only for critical incidents.
func (i CRAItem) IsAcceptable() bool {
	return i.Severity != CRACritical.String()
}

// CRAEnvironment (ENV).
type CRAEnvironment struct {
	ENV CRAChoice `bson:"ENV" json:"ENV"`
}

// CRAHumanRights (HRT): human and labour rights.
type CRAHumanRights struct {
	C1_1 CRAChoice `bson:"c_1_1" json:"c_1_1"` // fundamental human rights
	C2_1 CRAChoice `bson:"c_2_1" json:"c_2_1"` // fundamental labour rights
	C2_4 CRAChoice `bson:"c_2_4" json:"c_2_4"` // non-discrimination
	C2_5 CRAChoice `bson:"c_2_5" json:"c_2_5"` // child and forced labour
}

// CRABusinessBehaviour (C&S).
type CRABusinessBehaviour struct {
	C2_3 CRAChoice `bson:"c_2_3" json:"c_2_3"` // environmental standards in the supply chain
	C2_4 CRAChoice `bson:"c_2_4" json:"c_2_4"` // social standards in the supply chain
	C3_1 CRAChoice `bson:"c_3_1" json:"c_3_1"` // corruption
}

// CRA is the controversy risk assessment (UN Global Compact compliance).
type CRA struct {
	ENV *CRAEnvironment       `bson:"ENV,omitempty" json:"ENV,omitempty"`
	HRT *CRAHumanRights       `bson:"HRT,omitempty" json:"HRT,omitempty"`
	CS  *CRABusinessBehaviour `bson:"CS,omitempty" json:"CS,omitempty"`
}

// Choices returns every graded category present, keyed "ENV", "HRT.c_1_1", ...
func (c CRA) Choices() map[string]CRAChoice {
	out := make(map[string]CRAChoice)
	if c.ENV != nil {
		out["ENV"] = c.ENV.ENV
	}
	if c.HRT != nil {
		out["HRT.c_1_1"] = c.HRT.C1_1
		out["HRT.c_2_1"] = c.HRT.C2_1
		out["HRT.c_2_4"] = c.HRT.C2_4
		out["HRT.c_2_5"] = c.HRT.C2_5
	}
	if c.CS != nil {
		out["CS.c_2_3"] = c.CS.C2_3
		out["CS.c_2_4"] = c.CS.C2_4
		out["CS.c_3_1"] = c.CS.C3_1
	}
	return out
}

// IsAcceptable is false when any category is graded critical.
func (c CRA) IsAcceptable() bool {
	for _, v := range c.Choices() {
		if v == CRACritical {
			return false
		}
	}
	return true
}
