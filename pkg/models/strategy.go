package models

// StrategyName identifies one of the strategies the advisor can return
type StrategyName string

const (
	StrategyStraddle    StrategyName = "Straddle"
	StrategyCoveredCall StrategyName = "Covered Call"
)

// Strategy is a named group of one or two contracts
type Strategy struct {
	Name        StrategyName `json:"name"`
	Description string       `json:"description"`
	Contracts   []Contract   `json:"contracts"`
}
