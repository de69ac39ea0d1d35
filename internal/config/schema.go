package config

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Structural pre-check of the raw settings tree. Catches shape mistakes
// (scalar where a table is expected, wrong element types) with a precise
// path before mapstructure flattens them into zero values.
const schemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "app": {
      "type": "object",
      "properties": {
        "env": {"type": "string"},
        "log_level": {"type": "string"},
        "http_addr": {"type": "string"},
        "log_path": {"type": "string"}
      }
    },
    "market": {
      "type": "object",
      "properties": {
        "rest_base_url": {"type": "string"},
        "timeout_seconds": {"type": "integer"},
        "candle_limit": {"type": "integer"}
      }
    },
    "bridge": {
      "type": "object",
      "properties": {
        "base_url": {"type": "string"},
        "api_token": {"type": "string"},
        "timeout_seconds": {"type": "integer"}
      }
    },
    "memory": {
      "type": "object",
      "properties": {
        "base_url": {"type": "string"},
        "timeout_seconds": {"type": "integer"},
        "top_k": {"type": "integer"},
        "playbook_path": {"type": "string"}
      }
    },
    "store": {
      "type": "object",
      "properties": {
        "decision_db_path": {"type": "string"},
        "flag_db_path": {"type": "string"}
      }
    },
    "agent": {
      "type": "object",
      "properties": {
        "mode": {"type": "string"},
        "symbols": {"type": "array", "items": {"type": "string"}},
        "timeframe": {"type": "string"},
        "cycle_seconds": {"type": "integer"},
        "fetch_timeout_seconds": {"type": "integer"},
        "risk": {
          "type": "object",
          "properties": {
            "max_risk_per_trade_usd": {"type": "number"},
            "risk_pct_per_trade": {"type": "number"},
            "min_risk_reward": {"type": "number"},
            "max_position_size_usd": {"type": "number"},
            "max_equity_pct": {"type": "number"},
            "max_open_positions": {"type": "integer"},
            "daily_loss_limit_usd": {"type": "number"},
            "allowed_symbols": {"type": "array", "items": {"type": "string"}}
          }
        },
        "psychology": {
          "type": "object",
          "properties": {
            "size_down_multiplier": {"type": "number"},
            "cool_down_multiplier": {"type": "number"},
            "lookback_trades": {"type": "integer"}
          }
        },
        "safety": {
          "type": "object",
          "properties": {
            "market_max_age_seconds": {"type": "integer"},
            "account_max_age_seconds": {"type": "integer"},
            "allow_overnight": {"type": "boolean"},
            "session_close_utc": {"type": "string"},
            "overnight_cutoff_minutes": {"type": "integer"}
          }
        }
      }
    }
  }
}`

var configSchema = jsonschema.MustCompileString("config.schema.json", schemaJSON)

func validateSchema(settings map[string]any) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode settings: %w", err)
	}
	return configSchema.Validate(doc)
}
