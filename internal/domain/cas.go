package domain

// CAS is the controversial activity screening. Float fields are revenue
// shares, boolean fields flag involvement.
type CAS struct {
	ALC1  *CASAlcohol            `bson:"ALC1,omitempty" json:"ALC1,omitempty"`
	ANIM1 *CASAnimalWelfare      `bson:"ANIM1,omitempty" json:"ANIM1,omitempty"`
	CHEM1 *CASChemicals          `bson:"CHEM1,omitempty" json:"CHEM1,omitempty"`
	CFA1  *CASCivilianFirearms   `bson:"CFA1,omitempty" json:"CFA1,omitempty"`
	FOSF1 *CASFossilFuels        `bson:"FOSF1,omitempty" json:"FOSF1,omitempty"`
	FOSF2 *CASCoal               `bson:"FOSF2,omitempty" json:"FOSF2,omitempty"`
	FOSF3 *CASUnconventionalOil  `bson:"FOSF3,omitempty" json:"FOSF3,omitempty"`
	GAMB1 *CASGambling           `bson:"GAMB1,omitempty" json:"GAMB1,omitempty"`
	MIL1  *CASMilitary           `bson:"MIL1,omitempty" json:"MIL1,omitempty"`
	NUCL1 *CASNuclearPower       `bson:"NUCL1,omitempty" json:"NUCL1,omitempty"`
	PORN1 *CASPornography        `bson:"PORN1,omitempty" json:"PORN1,omitempty"`
	TOB1  *CASTobacco            `bson:"TOB1,omitempty" json:"TOB1,omitempty"`
	CANN1 *CASCannabis           `bson:"CANN1,omitempty" json:"CANN1,omitempty"`
	GMO1  *CASGeneticEngineering `bson:"GMO1,omitempty" json:"GMO1,omitempty"`
	HESC1 *CASEmbryonicStemCells `bson:"HESC1,omitempty" json:"HESC1,omitempty"`
}

// CASAlcohol (ALC1).
type CASAlcohol struct {
	C2 float64 `bson:"c_2" json:"c_2"` // production of alcoholic beverages
}

// CASAnimalWelfare (ANIM1).
type CASAnimalWelfare struct {
	C1_1 float64 `bson:"c_1_1" json:"c_1_1"` // cosmetic products tested on animals
	C2_1 float64 `bson:"c_2_1" json:"c_2_1"` // non-cosmetic products tested on animals, manufacturers
	C2_2 float64 `bson:"c_2_2" json:"c_2_2"` // non-cosmetic products tested on animals, distributors
	C4   bool    `bson:"c_4" json:"c_4"`     // irresponsible animal testing for medical purpose
	C5   float64 `bson:"c_5" json:"c_5"`     // fur products
	C6   float64 `bson:"c_6" json:"c_6"`     // intensive farming
}

// CASChemicals (CHEM1).
type CASChemicals struct {
	C1   float64 `bson:"c_1" json:"c_1"`     // restricted chemicals
	C3_1 float64 `bson:"c_3_1" json:"c_3_1"` // pesticides, manufacturers
}

// CASCivilianFirearms (CFA1).
type CASCivilianFirearms struct {
	C1 float64 `bson:"c_1" json:"c_1"`
}

// CASFossilFuels (FOSF1).
type CASFossilFuels struct {
	C1_1 float64 `bson:"c_1_1" json:"c_1_1"` // upstream
	C1_2 float64 `bson:"c_1_2" json:"c_1_2"` // midstream
}

// CASCoal (FOSF2).
type CASCoal struct {
	C2_3 float64 `bson:"c_2_3" json:"c_2_3"` // thermal coal mining
	C2_4 float64 `bson:"c_2_4" json:"c_2_4"` // coal-fuelled power generation
}

// CASUnconventionalOil (FOSF3).
type CASUnconventionalOil struct {
	C1   float64 `bson:"c_1" json:"c_1"`     // tar sands and oil shale
	C4_1 float64 `bson:"c_4_1" json:"c_4_1"` // offshore arctic drilling
	C4_5 float64 `bson:"c_4_5" json:"c_4_5"` // hydraulic fracturing
}

// CASGambling (GAMB1).
type CASGambling struct {
	C1 float64 `bson:"c_1" json:"c_1"`
}

// CASMilitary (MIL1).
type CASMilitary struct {
	C1 float64 `bson:"c_1" json:"c_1"` // military sales
	C2 float64 `bson:"c_2" json:"c_2"` // controversial weapons
	C3 float64 `bson:"c_3" json:"c_3"` // financing of cluster munitions or landmines
}

// CASNuclearPower (NUCL1).
type CASNuclearPower struct {
	C1_1 float64 `bson:"c_1_1" json:"c_1_1"` // turnover from nuclear power
	C1_5 float64 `bson:"c_1_5" json:"c_1_5"` // uranium mining
}

// CASPornography (PORN1).
type CASPornography struct {
	C2 float64 `bson:"c_2" json:"c_2"`
}

// CASTobacco (TOB1).
type CASTobacco struct {
	C2 float64 `bson:"c_2" json:"c_2"` // tobacco
	C4 float64 `bson:"c_4" json:"c_4"` // e-cigarettes
}

// CASCannabis (CANN1).
type CASCannabis struct {
	C2 float64 `bson:"c_2" json:"c_2"`
}

// CASGeneticEngineering (GMO1).
type CASGeneticEngineering struct {
	C2 bool `bson:"c_2" json:"c_2"` // GMOs for human consumption
}

// HESC1Choice grades research on human embryonic stem cells.
type HESC1Choice int

const (
	HESC1No   HESC1Choice = 0
	HESC1Open HESC1Choice = 1
	HESC1Yes  HESC1Choice = 2
)

// Valid reports whether c is one of the defined choices.
func (c HESC1Choice) Valid() bool {
	return c >= HESC1No && c <= HESC1Yes
}

// CASEmbryonicStemCells (HESC1).
type CASEmbryonicStemCells struct {
	C1 HESC1Choice `bson:"c_1" json:"c_1"`
}
