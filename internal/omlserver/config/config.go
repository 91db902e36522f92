// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads and validates the oml-server JSON configuration
// file, the way internal/config/validate.go validates cc-backend's.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const configSchema = `{
    "type": "object",
    "description": "Configuration for oml-server, the OMSP collection daemon.",
    "properties": {
        "listen": {
            "description": "Address the raw TCP collection socket listens on.",
            "type": "string"
        },
        "admin-listen": {
            "description": "Address the HTTP admin/metrics surface listens on.",
            "type": "string"
        },
        "db-driver": {
            "description": "'sqlite3' or 'mysql'.",
            "type": "string",
            "enum": ["sqlite3", "mysql"]
        },
        "data-dir": {
            "description": "Directory holding one sqlite3 file per domain.",
            "type": "string"
        },
        "dsn": {
            "description": "mysql DSN prefix; the domain name is appended as the database name.",
            "type": "string"
        },
        "log-level": {
            "type": "string"
        },
        "log-file": {
            "type": "string"
        },
        "nats-url": {
            "description": "If set, every inserted sample is also published as an Influx line to this NATS server.",
            "type": "string"
        },
        "nats-subject": {
            "type": "string"
        },
        "user": {
            "type": "string"
        },
        "group": {
            "type": "string"
        }
    },
    "required": ["listen", "db-driver"]
}`

// Config is the parsed, validated server configuration.
type Config struct {
	Listen      string `json:"listen"`
	AdminListen string `json:"admin-listen"`
	DBDriver    string `json:"db-driver"`
	DataDir     string `json:"data-dir"`
	DSN         string `json:"dsn"`
	LogLevel    string `json:"log-level"`
	LogFile     string `json:"log-file"`
	NatsURL     string `json:"nats-url"`
	NatsSubject string `json:"nats-subject"`
	User        string `json:"user"`
	Group       string `json:"group"`
}

// Default returns the configuration used when no config file is given.
func Default() Config {
	return Config{
		Listen:      ":3003",
		AdminListen: ":8343",
		DBDriver:    "sqlite3",
		DataDir:     "./var/domains",
		LogLevel:    "info",
		NatsSubject: "oml.samples",
	}
}

var schemaOnce *jsonschema.Schema

func compiledSchema() (*jsonschema.Schema, error) {
	if schemaOnce != nil {
		return schemaOnce, nil
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("config.schema.json", strings.NewReader(configSchema)); err != nil {
		return nil, fmt.Errorf("omlserver/config: add schema resource: %w", err)
	}
	s, err := c.Compile("config.schema.json")
	if err != nil {
		return nil, fmt.Errorf("omlserver/config: compile schema: %w", err)
	}
	schemaOnce = s
	return s, nil
}

// Load reads and validates path against configSchema, overlaying it onto
// Default(). A missing file is not an error: the defaults are returned
// as-is, matching cc-backend's "config.json is optional" behavior.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("omlserver/config: read %s: %w", path, err)
	}

	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return cfg, fmt.Errorf("omlserver/config: parse %s: %w", path, err)
	}

	schema, err := compiledSchema()
	if err != nil {
		return cfg, err
	}
	if err := schema.Validate(generic); err != nil {
		return cfg, fmt.Errorf("omlserver/config: %s failed validation: %w", path, err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("omlserver/config: decode %s: %w", path, err)
	}
	return cfg, nil
}
