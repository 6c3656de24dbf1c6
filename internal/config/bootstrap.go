package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ethyca-go/privacyrun/internal/datasetdef"
	"github.com/ethyca-go/privacyrun/internal/model"
)

// Bootstrap is the parsed content of a bootstrap YAML file: the dataset
// catalog (handed to datasetdef for the heavy validation) plus the policies
// that reference it.
type Bootstrap struct {
	Datasets []model.Dataset
	Policies []model.Policy
}

// policyFile is the wire shape of the "policies" section of a bootstrap
// file: a rule's masking_strategy configuration and a policy's webhook
// lists, in the same flat YAML style datasetdef uses for datasets.
type policyFile struct {
	Policies []policyDef `yaml:"policies"`
}

type policyDef struct {
	Key          string      `yaml:"key"`
	Rules        []ruleDef   `yaml:"rules"`
	PreWebhooks  []webhookDef `yaml:"pre_webhooks"`
	PostWebhooks []webhookDef `yaml:"post_webhooks"`
}

type ruleDef struct {
	Key                  string             `yaml:"key"`
	Action               string             `yaml:"action"`
	TargetDataCategories []string           `yaml:"target_data_categories"`
	MaskingStrategy      *maskingStrategyDef `yaml:"masking_strategy"`
}

type maskingStrategyDef struct {
	Name          string         `yaml:"name"`
	Configuration map[string]any `yaml:"configuration"`
}

type webhookDef struct {
	Key           string `yaml:"key"`
	Name          string `yaml:"name"`
	ConnectionRef string `yaml:"connection_key"`
	Direction     string `yaml:"direction"`
	Order         int    `yaml:"order"`
}

// LoadBootstrap parses a YAML document containing top-level "dataset" and
// "policies" sections into the in-memory model this module's other
// packages consume. Dataset validation (length/data-type rules) is
// delegated to datasetdef so both loading paths enforce the exact same
// wire-format rules.
func LoadBootstrap(doc []byte, registry *model.ConverterRegistry) (Bootstrap, error) {
	datasets, err := datasetdef.LoadDatasets(doc, registry)
	if err != nil {
		return Bootstrap{}, err
	}

	var pf policyFile
	if err := yaml.Unmarshal(doc, &pf); err != nil {
		return Bootstrap{}, fmt.Errorf("config: parsing policies: %w", err)
	}

	policies := make([]model.Policy, 0, len(pf.Policies))
	for _, pd := range pf.Policies {
		policies = append(policies, convertPolicy(pd))
	}

	return Bootstrap{Datasets: datasets, Policies: policies}, nil
}

func convertPolicy(pd policyDef) model.Policy {
	p := model.Policy{Key: pd.Key}
	for _, rd := range pd.Rules {
		r := model.Rule{
			Key:                  rd.Key,
			Action:               model.ActionType(rd.Action),
			TargetDataCategories: rd.TargetDataCategories,
		}
		if rd.MaskingStrategy != nil {
			r.MaskingStrategy = &model.MaskingStrategyConfig{
				Name:          rd.MaskingStrategy.Name,
				Configuration: rd.MaskingStrategy.Configuration,
			}
		}
		p.Rules = append(p.Rules, r)
	}

	for _, wd := range pd.PreWebhooks {
		p.PreWebhooks = append(p.PreWebhooks, convertWebhook(wd))
	}
	for _, wd := range pd.PostWebhooks {
		p.PostWebhooks = append(p.PostWebhooks, convertWebhook(wd))
	}
	p.PreWebhooks = model.NormalizeWebhookOrder(p.PreWebhooks)
	p.PostWebhooks = model.NormalizeWebhookOrder(p.PostWebhooks)

	return p
}

func convertWebhook(wd webhookDef) model.Webhook {
	return model.Webhook{
		Key:           wd.Key,
		Name:          wd.Name,
		ConnectionRef: wd.ConnectionRef,
		Direction:     model.WebhookDirection(wd.Direction),
		Order:         wd.Order,
	}
}
