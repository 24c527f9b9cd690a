// internal/scenario/scenario.go
package scenario

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Step actions.
const (
	ActionInit    = "init"
	ActionApprove = "approve"
	ActionCreate  = "create"
	ActionBuy     = "buy"
	ActionSell    = "sell"
	ActionExpect  = "expect"
)

//go:embed scenarios/reference.yaml
var referenceYAML []byte

// Scenario is a scripted sequence of engine operations with expectations.
// Amounts are whole reserve or token units ("1.5"); price_ppm is an integer.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// WeightPPM overrides the engine connector weight.
	WeightPPM uint32 `yaml:"weight_ppm,omitempty"`

	// Accounts maps an account name to the reserve units it receives at genesis.
	Accounts map[string]string `yaml:"accounts"`

	Steps []Step `yaml:"steps"`
}

// Step is one action. Fields not used by the action must be left empty.
type Step struct {
	Action string `yaml:"action"`

	Account string `yaml:"account,omitempty"`
	// Economy is the alias a create step binds and later steps refer to.
	Economy string `yaml:"economy,omitempty"`

	Name          string `yaml:"name,omitempty"`
	Symbol        string `yaml:"symbol,omitempty"`
	MaxSupply     string `yaml:"max_supply,omitempty"`
	InitialSupply string `yaml:"initial_supply,omitempty"`

	// Reserve is the seed reserve of a create, or the expected reserve balance.
	Reserve   string `yaml:"reserve,omitempty"`
	Amount    string `yaml:"amount,omitempty"`
	MinReturn string `yaml:"min_return,omitempty"`
	Referrer  string `yaml:"referrer,omitempty"`

	// Expectations.
	Supply    string `yaml:"supply,omitempty"`
	PricePPM  string `yaml:"price_ppm,omitempty"`
	Balance   string `yaml:"balance,omitempty"`
	Wallet    string `yaml:"wallet,omitempty"`
	Tolerance string `yaml:"tolerance,omitempty"`

	// Error is the expected error kind, e.g. "slippage exceeded".
	Error string `yaml:"error,omitempty"`
}

// Parse decodes a scenario, rejecting unknown fields.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validate(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return Parse(data)
}

// Reference returns the bundled reference scenario.
func Reference() *Scenario {
	sc, err := Parse(referenceYAML)
	if err != nil {
		panic(err)
	}
	return sc
}

func validate(sc *Scenario) error {
	if sc.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(sc.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	aliases := map[string]bool{}
	for i, st := range sc.Steps {
		need := func(field, value string) error {
			if value == "" {
				return fmt.Errorf("steps[%d]: %s is required for %s", i, field, st.Action)
			}
			return nil
		}
		var err error
		switch st.Action {
		case ActionInit:
		case ActionApprove:
			err = firstErr(need("account", st.Account), need("amount", st.Amount))
		case ActionCreate:
			err = firstErr(need("account", st.Account), need("economy", st.Economy),
				need("max_supply", st.MaxSupply), need("reserve", st.Reserve), need("initial_supply", st.InitialSupply))
			if err == nil && st.Error == "" {
				if aliases[st.Economy] {
					err = fmt.Errorf("steps[%d]: economy %q is bound twice", i, st.Economy)
				}
				aliases[st.Economy] = true
			}
		case ActionBuy, ActionSell:
			err = firstErr(need("account", st.Account), need("economy", st.Economy), need("amount", st.Amount))
		case ActionExpect:
			if st.Economy == "" && (st.Account == "" || st.Wallet == "") {
				err = fmt.Errorf("steps[%d]: expect needs an economy, or an account and a wallet", i)
			}
		case "":
			err = fmt.Errorf("steps[%d]: action is required", i)
		default:
			err = fmt.Errorf("steps[%d]: unknown action %q", i, st.Action)
		}
		if err != nil {
			return err
		}
		if st.Economy != "" && st.Action != ActionCreate && !aliases[st.Economy] {
			return fmt.Errorf("steps[%d]: economy %q is not created by an earlier step", i, st.Economy)
		}
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
