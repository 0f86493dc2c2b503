package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ReportingCollection is the collection SustainabilityReporting documents live in.
const ReportingCollection = "sustainability_reporting"

// SustainabilityReporting is one data delivery for one instrument.
// (isin, date) is unique.
type SustainabilityReporting struct {
	ID   bson.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	ISIN string        `bson:"isin" json:"isin"`
	// Date of data delivery.
	Date time.Time `bson:"date" json:"date"`

	ESG        *ESG        `bson:"ESG,omitempty" json:"ESG,omitempty"`
	EUTaxonomy *EUTaxonomy `bson:"EU_taxonomy,omitempty" json:"EU_taxonomy,omitempty"`
	CAS        *CAS        `bson:"CAS,omitempty" json:"CAS,omitempty"`
	CRA        *CRA        `bson:"CRA,omitempty" json:"CRA,omitempty"`
	PAI        *PAI        `bson:"PAI,omitempty" json:"PAI,omitempty"`

	// Scale of incorporation, overall impact score.
	SDGInvolvement *IntervalIndicator `bson:"sdg_involvement,omitempty" json:"sdg_involvement,omitempty"`

	ImpactTheme *ImpactThemes `bson:"impact_theme,omitempty" json:"impact_theme,omitempty"`
	// Sustainable goods and services; each relates to a single impact theme.
	SustainableProductsAndServices []string `bson:"sustainable_products_and_services,omitempty" json:"sustainable_products_and_services,omitempty"`

	// Carbon footprint & energy transition global score, 0 to 100.
	EnergyTransitionScore *int `bson:"energy_transition_score,omitempty" json:"energy_transition_score,omitempty"`
}

// ESGRating is the band an overall ESG score falls into.
type ESGRating string

const (
	ESGAdvanced ESGRating = "Advanced"
	ESGRobust   ESGRating = "Robust"
	ESGLimited  ESGRating = "Limited"
	ESGWeak     ESGRating = "Weak"
)

// ESG holds the assessment scores, each out of 100.
type ESG struct {
	ESG int `bson:"ESG" json:"ESG"` // overall
	E   int `bson:"E" json:"E"`
	S   int `bson:"S" json:"S"`
	G   int `bson:"G" json:"G"`
}

// Rating maps the overall score onto its band.
func (e ESG) Rating() ESGRating {
	switch {
	case e.ESG >= 60:
		return ESGAdvanced
	case e.ESG >= 50:
		return ESGRobust
	case e.ESG >= 30:
		return ESGLimited
	default:
		return ESGWeak
	}
}

// EUTaxonomy records EU taxonomy eligibility.
type EUTaxonomy struct {
	Eligible bool `bson:"eligible" json:"eligible"`
}

// IntervalIndicator stores a percentage interval as fractions.
// (0, 0) means "0"; (0, 0.1) means "]0 - 10%[".
type IntervalIndicator struct {
	Lower float64 `bson:"lower" json:"lower"`
	Mean  float64 `bson:"mean" json:"mean"`
	Upper float64 `bson:"upper" json:"upper"`
}

// ImpactThemes holds the scale of incorporation per sustainable impact theme.
type ImpactThemes struct {
	AccessToInformation    *IntervalIndicator `bson:"access_to_information,omitempty" json:"access_to_information,omitempty"`
	CapacityBuilding       *IntervalIndicator `bson:"capacity_building,omitempty" json:"capacity_building,omitempty"`
	EnergyAndClimateChange *IntervalIndicator `bson:"energy_and_climate_change,omitempty" json:"energy_and_climate_change,omitempty"`
	FoodAndNutrition       *IntervalIndicator `bson:"food_and_nutrition,omitempty" json:"food_and_nutrition,omitempty"`
	Health                 *IntervalIndicator `bson:"health,omitempty" json:"health,omitempty"`
	Infrastructure         *IntervalIndicator `bson:"infrastructure,omitempty" json:"infrastructure,omitempty"`
	ResponsibleFinance     *IntervalIndicator `bson:"responsible_finance,omitempty" json:"responsible_finance,omitempty"`
	WaterAndSanitation     *IntervalIndicator `bson:"water_and_sanitation,omitempty" json:"water_and_sanitation,omitempty"`
	ProtectionOfEcosystems *IntervalIndicator `bson:"protection_of_ecosystems,omitempty" json:"protection_of_ecosystems,omitempty"`
}
