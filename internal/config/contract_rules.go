package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	NumberFormatYearly = "yearly"
	NumberFormatLegacy = "legacy"
)

// ContractRules are the tunables of contract numbering and validation.
type ContractRules struct {
	NumberPrefix      string
	NumberFormat      string
	SequencePadding   int
	MaxNumberAttempts int
	MinDurationMonths int
	MaxDurationMonths int
}

func DefaultContractRules() ContractRules {
	return ContractRules{
		NumberPrefix:      "V",
		NumberFormat:      NumberFormatYearly,
		SequencePadding:   4,
		MaxNumberAttempts: 10,
		MinDurationMonths: 1,
		MaxDurationMonths: 120,
	}
}

type ContractRulesHolder struct {
	current atomic.Value // holds ContractRules
}

// NewStaticContractRulesHolder returns a holder that never reloads.
func NewStaticContractRulesHolder(rules ContractRules) *ContractRulesHolder {
	holder := &ContractRulesHolder{}
	holder.current.Store(rules)
	return holder
}

func NewContractRulesHolder() (*ContractRulesHolder, error) {
	v := viper.New()

	v.SetConfigName("contracts")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/contractdesk")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CONTRACTDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultContractRules()
	v.SetDefault("contracts.numberPrefix", defaults.NumberPrefix)
	v.SetDefault("contracts.numberFormat", defaults.NumberFormat)
	v.SetDefault("contracts.sequencePadding", defaults.SequencePadding)
	v.SetDefault("contracts.maxNumberAttempts", defaults.MaxNumberAttempts)
	v.SetDefault("contracts.minDurationMonths", defaults.MinDurationMonths)
	v.SetDefault("contracts.maxDurationMonths", defaults.MaxDurationMonths)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	rules := readContractRules(v)
	if err := validateContractRules(rules); err != nil {
		return nil, err
	}

	holder := NewStaticContractRulesHolder(rules)

	if fileFound {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			updated := readContractRules(v)
			if err := validateContractRules(updated); err != nil {
				log.Printf("[contract-rules] invalid config ignored: %v", err)
				return
			}
			holder.current.Store(updated)
			log.Printf("[contract-rules] reloaded from %s", e.Name)
		})
	}

	return holder, nil
}

// readContractRules resolves each key on its own so a partial file still
// picks up defaults for the keys it omits.
func readContractRules(v *viper.Viper) ContractRules {
	return ContractRules{
		NumberPrefix:      strings.TrimSpace(v.GetString("contracts.numberPrefix")),
		NumberFormat:      strings.ToLower(strings.TrimSpace(v.GetString("contracts.numberFormat"))),
		SequencePadding:   v.GetInt("contracts.sequencePadding"),
		MaxNumberAttempts: v.GetInt("contracts.maxNumberAttempts"),
		MinDurationMonths: v.GetInt("contracts.minDurationMonths"),
		MaxDurationMonths: v.GetInt("contracts.maxDurationMonths"),
	}
}

func (h *ContractRulesHolder) Get() ContractRules {
	if h == nil {
		return DefaultContractRules()
	}
	rules, ok := h.current.Load().(ContractRules)
	if !ok {
		return DefaultContractRules()
	}
	return rules
}

func validateContractRules(rules ContractRules) error {
	if strings.TrimSpace(rules.NumberPrefix) == "" {
		return errors.New("contracts.numberPrefix is required")
	}
	switch rules.NumberFormat {
	case NumberFormatYearly, NumberFormatLegacy:
	default:
		return errors.New("contracts.numberFormat must be yearly or legacy")
	}
	if rules.SequencePadding < 1 || rules.SequencePadding > 12 {
		return errors.New("contracts.sequencePadding must be between 1 and 12")
	}
	if rules.MaxNumberAttempts < 1 {
		return errors.New("contracts.maxNumberAttempts must be positive")
	}
	if rules.MinDurationMonths < 1 || rules.MaxDurationMonths < rules.MinDurationMonths {
		return errors.New("contracts duration bounds are invalid")
	}
	return nil
}
