// Package config handles YAML configuration loading for the gateway.
//
// Configuration files support ${VAR} environment variable interpolation.
// Since YAML is a superset of JSON, a JSON config file loads unchanged.
package config
