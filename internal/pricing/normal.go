package pricing

import "gonum.org/v1/gonum/stat/distuv"

// NormalCDF is the standard normal cumulative distribution function
func NormalCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// NormalPDF is the standard normal density
func NormalPDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}
