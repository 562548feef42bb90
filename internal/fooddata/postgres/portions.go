package postgres

import (
	"fmt"
	"math"

	"github.com/nutriplan/nutriplan/internal/fooddata"
)

// baseline holds a food's per-100g macros as stored in the catalog.
type baseline struct {
	Calories     float64
	Protein      float64
	Carbohydrate float64
	Fat          float64
	Fiber        *float64
}

// canonicalServing is the 100 g serving every catalog food carries.
func (b baseline) canonicalServing(foodID string) fooddata.FoodServing {
	amount := 100.0
	return fooddata.FoodServing{
		ServingID:           foodID + "-100g",
		ServingDescription:  "100 g",
		MetricServingAmount: &amount,
		MetricServingUnit:   "g",
		Calories:            b.Calories,
		Protein:             b.Protein,
		Carbohydrate:        b.Carbohydrate,
		Fat:                 b.Fat,
		Fiber:               b.Fiber,
	}
}

// portionServing derives a serving for a common portion by scaling the 100 g
// baseline linearly. Macros round to one decimal place; calories keep four
// significant digits.
func (b baseline) portionServing(foodID string, seq int, description string, gramWeight float64) fooddata.FoodServing {
	factor := gramWeight / 100
	amount := gramWeight

	s := fooddata.FoodServing{
		ServingID:           fmt.Sprintf("%s-p%d", foodID, seq),
		ServingDescription:  description,
		MetricServingAmount: &amount,
		MetricServingUnit:   "g",
		Calories:            roundSig(b.Calories*factor, 4),
		Protein:             round1(b.Protein * factor),
		Carbohydrate:        round1(b.Carbohydrate * factor),
		Fat:                 round1(b.Fat * factor),
	}
	if b.Fiber != nil {
		fiber := round1(*b.Fiber * factor)
		s.Fiber = &fiber
	}
	return s
}

// round1 rounds to one decimal place.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// roundSig rounds to the given number of significant digits.
func roundSig(v float64, digits int) float64 {
	if v == 0 {
		return 0
	}
	magnitude := math.Ceil(math.Log10(math.Abs(v)))
	power := float64(digits) - magnitude
	scale := math.Pow(10, power)
	return math.Round(v*scale) / scale
}
