package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models gigline.yml.
type Config struct {
	Marketplace struct {
		ID       string `yaml:"id"`
		Name     string `yaml:"name"`
		Currency string `yaml:"currency"`
	} `yaml:"marketplace"`
	Proposals struct {
		AutoRejectSiblings bool `yaml:"auto_reject_siblings"`
	} `yaml:"proposals"`
	Reviews struct {
		MinRating int `yaml:"min_rating"`
		MaxRating int `yaml:"max_rating"`
	} `yaml:"reviews"`
	Sow struct {
		Provider       string `yaml:"provider"`
		Model          string `yaml:"model"`
		Endpoint       string `yaml:"endpoint"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"sow"`
	Categories map[string]struct {
		Label string `yaml:"label"`
	} `yaml:"categories"`
	RBAC struct {
		Roles map[string]RBACRole `yaml:"roles"`
	} `yaml:"rbac"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty"`
}

type RBACRole struct {
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret,omitempty"`
	Events         []string `yaml:"events,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty"`
	Enabled        *bool    `yaml:"enabled,omitempty"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with gig config import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Marketplace.ID == "" {
		return fmt.Errorf("config.marketplace.id is required")
	}
	if c.Reviews.MinRating < 0 || c.Reviews.MaxRating < c.Reviews.MinRating {
		return fmt.Errorf("config.reviews rating bounds invalid: min=%d max=%d", c.Reviews.MinRating, c.Reviews.MaxRating)
	}
	if c.Sow.TimeoutSeconds < 0 {
		return fmt.Errorf("config.sow.timeout_seconds must be >= 0")
	}
	for id, cat := range c.Categories {
		if id == "" {
			return fmt.Errorf("config.categories contains empty category id")
		}
		if cat.Label == "" {
			return fmt.Errorf("category %s has empty label", id)
		}
	}
	if len(c.RBAC.Roles) > 0 {
		if _, ok := c.RBAC.Roles["admin"]; !ok {
			return fmt.Errorf("config.rbac.roles must include admin")
		}
		for roleID, role := range c.RBAC.Roles {
			if roleID == "" {
				return fmt.Errorf("config.rbac.roles contains empty role id")
			}
			for _, perm := range role.Permissions {
				if perm == "" {
					return fmt.Errorf("role %s has empty permission id", roleID)
				}
			}
		}
	}
	for _, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("config.webhooks contains entry with empty url")
		}
	}
	return nil
}

// SowTimeoutSeconds returns the configured AI call budget, defaulted.
func (c *Config) SowTimeoutSeconds() int {
	if c.Sow.TimeoutSeconds <= 0 {
		return 30
	}
	return c.Sow.TimeoutSeconds
}

// RatingBounds returns the inclusive review rating range, defaulted to 1..5.
func (c *Config) RatingBounds() (int, int) {
	min, max := c.Reviews.MinRating, c.Reviews.MaxRating
	if min == 0 && max == 0 {
		return 1, 5
	}
	return min, max
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "gigline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(marketplaceID string) string {
	return fmt.Sprintf(defaultTemplate, marketplaceID)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct for a marketplace.
func Default(marketplaceID string) *Config {
	var cfg Config
	cfg.Marketplace.ID = marketplaceID
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, marketplaceID))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `marketplace:
  id: %s
  name: Gigline
  currency: USD

proposals:
  auto_reject_siblings: true

reviews:
  min_rating: 1
  max_rating: 5

sow:
  provider: openai
  model: gpt-4o-mini
  timeout_seconds: 30

categories:
  design:
    label: "Design & Creative"
  development:
    label: "Web & Software Development"
  writing:
    label: "Writing & Translation"
  video:
    label: "Video & Animation"
  marketing:
    label: "Digital Marketing"

rbac:
  roles:
    admin:
      description: "Marketplace operator"
      permissions:
        - project.read
        - project.create
        - proposal.submit
        - proposal.decide
        - proposal.update
        - order.read
        - order.update
        - milestone.manage
        - delivery.submit
        - review.create
        - dispute.raise
        - dispute.advance
        - sow.generate
        - service.create
        - service.feature
        - message.post
        - portfolio.manage
        - rbac.manage
    buyer:
      description: "Posts projects, decides proposals"
      permissions:
        - project.read
        - project.create
        - proposal.decide
        - order.read
        - order.update
        - milestone.manage
        - review.create
        - dispute.raise
        - message.post
    creator:
      description: "Submits proposals and deliveries"
      permissions:
        - project.read
        - proposal.submit
        - proposal.update
        - order.read
        - milestone.manage
        - delivery.submit
        - review.create
        - dispute.raise
        - message.post
        - service.create
        - portfolio.manage
`
