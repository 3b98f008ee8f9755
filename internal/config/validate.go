package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateMisleadingTags(); err != nil {
		return err
	}
	if err := c.validateBatch(); err != nil {
		return err
	}
	return c.validateNotifications()
}

func (c *Config) validateLLM() error {
	if err := ensurePositiveMap(map[string]int{
		"llm.timeout_seconds": c.LLM.TimeoutSeconds,
		"llm.max_tokens":      c.LLM.MaxTokens,
	}); err != nil {
		return err
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 1 {
		return errors.New("llm.temperature must be between 0 and 1")
	}
	if c.LLM.VisionTemperature < 0 || c.LLM.VisionTemperature > 1 {
		return errors.New("llm.vision_temperature must be between 0 and 1")
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return errors.New("llm.model must be set")
	}
	return nil
}

func (c *Config) validateMisleadingTags() error {
	if !c.MisleadingTags.Enabled {
		return nil
	}
	if c.MisleadingTags.Retries <= 0 {
		return errors.New("misleading_tags.retries must be positive")
	}
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/notewriter/config.toml"
		}
		return fmt.Errorf("llm.api_key is required when misleading_tags.enabled is true. Set ANTHROPIC_API_KEY env var or edit %s (create with 'notewriter config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateBatch() error {
	if c.Batch.Workers <= 0 {
		return errors.New("batch.workers must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be a full URL, got %q", topic)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
