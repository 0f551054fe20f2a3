package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/aquadoks/sales-agent/agent/contract"
	openrouterx "github.com/aquadoks/sales-agent/pkg/openrouter"
)

// Role selects the model profile: the customer-facing sales loop runs warm,
// the admin SQL generator runs cold for precise statements.
type Role string

const (
	RoleSales Role = "sales"
	RoleSQL   Role = "sql"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	SalesModel       string  `envconfig:"SALES_MODEL" split_words:"true"`
	SQLModel         string  `envconfig:"SQL_MODEL" split_words:"true"`
	SalesTemperature float32 `envconfig:"SALES_TEMPERATURE" split_words:"true" default:"0.7"`
	SQLTemperature   float32 `envconfig:"SQL_TEMPERATURE" split_words:"true" default:"0.1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: llm api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// For resolves the provider config for a role, applying per-role model and
// temperature overrides over the shared defaults.
func (c Config) For(role Role) openrouterx.Config {
	maxTokens := c.MaxCompletionToken
	out := openrouterx.Config{
		BaseURL:            c.BaseURL,
		APIKey:             c.APIKey,
		Model:              c.Model,
		MaxCompletionToken: &maxTokens,
		Temperature:        c.SalesTemperature,
		Timeout:            c.Timeout,
		SiteURL:            c.SiteURL,
		SiteName:           c.SiteName,
	}

	switch role {
	case RoleSQL:
		out.Temperature = c.SQLTemperature
		if m := strings.TrimSpace(c.SQLModel); m != "" {
			out.Model = m
		}
	default:
		if m := strings.TrimSpace(c.SalesModel); m != "" {
			out.Model = m
		}
	}
	return out
}
