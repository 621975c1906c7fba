package main

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type Strategy string

const (
	ByCSS   Strategy = "css"
	ByID    Strategy = "id"
	ByName  Strategy = "name"
	ByXPath Strategy = "xpath"
	ByClass Strategy = "class"
)

// Locator addresses element(s) inside the active document context.
type Locator struct {
	Strategy Strategy
	Selector string
}

func CSS(sel string) Locator { return Locator{Strategy: ByCSS, Selector: sel} }
func ID(id string) Locator { return Locator{Strategy: ByID, Selector: id} }
func Name(n string) Locator { return Locator{Strategy: ByName, Selector: n} }
func XPath(x string) Locator { return Locator{Strategy: ByXPath, Selector: x} }
func Class(c string) Locator { return Locator{Strategy: ByClass, Selector: c} }

// ParseLocator reads the "strategy=selector" form used in the config file.
// A value without a known strategy prefix is treated as CSS.
func ParseLocator(s string) (Locator, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Locator{}, fmt.Errorf("empty locator")
	}

	if prefix, rest, ok := strings.Cut(s, "="); ok {
		switch Strategy(strings.ToLower(prefix)) {
		case ByCSS, ByID, ByName, ByXPath, ByClass:
			if rest == "" {
				return Locator{}, fmt.Errorf("locator %q has no selector", s)
			}
			return Locator{Strategy: Strategy(strings.ToLower(prefix)), Selector: rest}, nil
		}
	}

	return CSS(s), nil
}

func (l Locator) String() string {
	return string(l.Strategy) + "=" + l.Selector
}

func (l Locator) IsZero() bool {
	return l.Selector == ""
}

// CSS compiles every strategy except XPath into an equivalent CSS selector.
func (l Locator) CSS() string {
	switch l.Strategy {
	case ByID:
		return fmt.Sprintf(`[id="%s"]`, cssQuote(l.Selector))
	case ByName:
		return fmt.Sprintf(`[name="%s"]`, cssQuote(l.Selector))
	case ByClass:
		return fmt.Sprintf(`[class~="%s"]`, cssQuote(l.Selector))
	default:
		return l.Selector
	}
}

func cssQuote(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

func (l Locator) MarshalYAML() (interface{}, error) {
	return l.String(), nil
}

func (l *Locator) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseLocator(raw)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
