package session

import "fmt"

// W3C and Appium locator strategies.
const (
	StrategyXPath           = "xpath"
	StrategyAccessibilityID = "accessibility id"
	StrategyCSS             = "css selector"
	StrategyPredicate       = "-ios predicate string"
)

// Selector locates a UI element by strategy and value.
type Selector struct {
	Using string
	Value string
}

// XPath builds an xpath selector.
func XPath(expr string) Selector {
	return Selector{Using: StrategyXPath, Value: expr}
}

// AccessibilityID builds an accessibility id selector.
func AccessibilityID(id string) Selector {
	return Selector{Using: StrategyAccessibilityID, Value: id}
}

// CSS builds a css selector (web contexts).
func CSS(expr string) Selector {
	return Selector{Using: StrategyCSS, Value: expr}
}

// Predicate builds an iOS predicate string selector.
func Predicate(expr string) Selector {
	return Selector{Using: StrategyPredicate, Value: expr}
}

// Describe returns a human-readable description of the selector.
func (s Selector) Describe() string {
	return fmt.Sprintf("%s=%s", s.Using, s.Value)
}
