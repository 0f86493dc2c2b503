package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// PAIFloatIndicator is a numeric principal adverse impact value.
type PAIFloatIndicator struct {
	Indicator     float64 `bson:"indicator" json:"indicator"`
	ReportingYear string  `bson:"reporting_year,omitempty" json:"reporting_year,omitempty"`
}

// PAIBooleanIndicator is a yes/no principal adverse impact value.
type PAIBooleanIndicator struct {
	Indicator     bool   `bson:"indicator" json:"indicator"`
	ReportingYear string `bson:"reporting_year,omitempty" json:"reporting_year,omitempty"`
}

// PAI1 holds GHG emissions in metric tons of CO2 equivalent.
type PAI1 struct {
	Scope1 *PAIFloatIndicator `bson:"scope1,omitempty" json:"scope1,omitempty"`
	Scope2 *PAIFloatIndicator `bson:"scope2,omitempty" json:"scope2,omitempty"`
	Scope3 *PAIFloatIndicator `bson:"scope3,omitempty" json:"scope3,omitempty"` // from 1 January 2023
	Total  *PAIFloatIndicator `bson:"total,omitempty" json:"total,omitempty"`
}

// PAI5 is the share of non-renewable energy consumption and production.
type PAI5 struct {
	Consumption *PAIFloatIndicator `bson:"consumption,omitempty" json:"consumption,omitempty"`
	Production  *PAIFloatIndicator `bson:"production,omitempty" json:"production,omitempty"`
}

// PAI holds the SFDR principal adverse impact indicators 1 to 14.
// 15 to 18 are defined by SFDR but not delivered; anything else ends up in
// AdditionalIndicators.
type PAI struct {
	PAI01 *PAI1                `bson:"PAI01,omitempty" json:"PAI01,omitempty"`
	PAI02 *PAIFloatIndicator   `bson:"PAI02,omitempty" json:"PAI02,omitempty"` // carbon footprint
	PAI03 *PAIFloatIndicator   `bson:"PAI03,omitempty" json:"PAI03,omitempty"` // GHG intensity of investee companies
	PAI04 *PAIBooleanIndicator `bson:"PAI04,omitempty" json:"PAI04,omitempty"` // active in the fossil fuel sector
	PAI05 *PAI5                `bson:"PAI05,omitempty" json:"PAI05,omitempty"`
	PAI06 *PAIFloatIndicator   `bson:"PAI06,omitempty" json:"PAI06,omitempty"` // energy consumption intensity per high impact climate sector
	PAI07 *PAIFloatIndicator   `bson:"PAI07,omitempty" json:"PAI07,omitempty"` // activities negatively affecting biodiversity-sensitive areas (proxy)
	PAI08 *PAIFloatIndicator   `bson:"PAI08,omitempty" json:"PAI08,omitempty"` // emissions to water
	PAI09 *PAIFloatIndicator   `bson:"PAI09,omitempty" json:"PAI09,omitempty"` // hazardous waste, tonnes
	PAI10 *PAIBooleanIndicator `bson:"PAI10,omitempty" json:"PAI10,omitempty"` // violations of UNGC principles and OECD guidelines
	PAI11 *PAIFloatIndicator   `bson:"PAI11,omitempty" json:"PAI11,omitempty"` // lack of UNGC/OECD compliance processes
	PAI12 *PAIFloatIndicator   `bson:"PAI12,omitempty" json:"PAI12,omitempty"` // unadjusted gender pay gap
	PAI13 *PAIFloatIndicator   `bson:"PAI13,omitempty" json:"PAI13,omitempty"` // board gender diversity
	PAI14 *PAIBooleanIndicator `bson:"PAI14,omitempty" json:"PAI14,omitempty"` // exposure to controversial weapons

	AdditionalIndicators map[string]any `bson:"additional_indicators,omitempty" json:"additional_indicators,omitempty"`
}

// PAIFromMap builds a PAI from flat dotted keys such as
//
//	"PAI01.scope1.indicator": 0.1234
//	"PAI01.scope1.reporting_year": 2012
//	"PAI03.indicator": 0.1234
//	"PAI10.indicator": false
//
// Keys that do not address a known indicator are kept in AdditionalIndicators.
func PAIFromMap(data map[string]any) (*PAI, error) {
	p := &PAI{}
	for key, v := range data {
		parts := strings.Split(key, ".")
		if len(parts) < 2 {
			p.addAdditional(key, v)
			continue
		}
		path, attr := parts[:len(parts)-1], parts[len(parts)-1]
		if attr != "indicator" && attr != "reporting_year" {
			p.addAdditional(key, v)
			continue
		}

		if slot := p.floatSlot(path); slot != nil {
			if *slot == nil {
				*slot = &PAIFloatIndicator{}
			}
			if attr == "reporting_year" {
				(*slot).ReportingYear = yearString(v)
				continue
			}
			f, err := toFloat(v)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			(*slot).Indicator = f
			continue
		}

		if slot := p.boolSlot(path); slot != nil {
			if *slot == nil {
				*slot = &PAIBooleanIndicator{}
			}
			if attr == "reporting_year" {
				(*slot).ReportingYear = yearString(v)
				continue
			}
			b, err := toBool(v)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			(*slot).Indicator = b
			continue
		}

		p.addAdditional(key, v)
	}
	return p, nil
}

func (p *PAI) addAdditional(key string, v any) {
	if p.AdditionalIndicators == nil {
		p.AdditionalIndicators = make(map[string]any)
	}
	p.AdditionalIndicators[key] = v
}

// floatSlot returns the field addressed by path, allocating the PAI01/PAI05
// parents on demand. nil means path is not a float indicator.
func (p *PAI) floatSlot(path []string) **PAIFloatIndicator {
	switch len(path) {
	case 1:
		switch path[0] {
		case "PAI02":
			return &p.PAI02
		case "PAI03":
			return &p.PAI03
		case "PAI06":
			return &p.PAI06
		case "PAI07":
			return &p.PAI07
		case "PAI08":
			return &p.PAI08
		case "PAI09":
			return &p.PAI09
		case "PAI11":
			return &p.PAI11
		case "PAI12":
			return &p.PAI12
		case "PAI13":
			return &p.PAI13
		}
	case 2:
		switch path[0] {
		case "PAI01":
			var slot func(*PAI1) **PAIFloatIndicator
			switch path[1] {
			case "scope1":
				slot = func(x *PAI1) **PAIFloatIndicator { return &x.Scope1 }
			case "scope2":
				slot = func(x *PAI1) **PAIFloatIndicator { return &x.Scope2 }
			case "scope3":
				slot = func(x *PAI1) **PAIFloatIndicator { return &x.Scope3 }
			case "total":
				slot = func(x *PAI1) **PAIFloatIndicator { return &x.Total }
			default:
				return nil
			}
			if p.PAI01 == nil {
				p.PAI01 = &PAI1{}
			}
			return slot(p.PAI01)
		case "PAI05":
			var slot func(*PAI5) **PAIFloatIndicator
			switch path[1] {
			case "consumption":
				slot = func(x *PAI5) **PAIFloatIndicator { return &x.Consumption }
			case "production":
				slot = func(x *PAI5) **PAIFloatIndicator { return &x.Production }
			default:
				return nil
			}
			if p.PAI05 == nil {
				p.PAI05 = &PAI5{}
			}
			return slot(p.PAI05)
		}
	}
	return nil
}

func (p *PAI) boolSlot(path []string) **PAIBooleanIndicator {
	if len(path) != 1 {
		return nil
	}
	switch path[0] {
	case "PAI04":
		return &p.PAI04
	case "PAI10":
		return &p.PAI10
	case "PAI14":
		return &p.PAI14
	}
	return nil
}

func yearString(v any) string {
	switch y := v.(type) {
	case float64:
		return strconv.FormatFloat(y, 'f', -1, 64)
	case string:
		return strings.TrimSpace(y)
	default:
		return fmt.Sprint(v)
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes", "1":
			return true, nil
		case "false", "no", "0", "":
			return false, nil
		}
		return false, fmt.Errorf("not a boolean: %q", b)
	case float64:
		return b != 0, nil
	case int:
		return b != 0, nil
	case int64:
		return b != 0, nil
	default:
		return false, fmt.Errorf("not a boolean: %v", v)
	}
}
