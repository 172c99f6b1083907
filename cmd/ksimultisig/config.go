/*
 * Copyright 2020 Guardtime, Inc.
 *
 * This file is part of the Guardtime client SDK.
 *
 * Licensed under the Apache License, Version 2.0 (the "License").
 * You may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *     http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES, CONDITIONS, OR OTHER LICENSES OF ANY KIND, either
 * express or implied. See the License for the specific language governing
 * permissions and limitations under the License.
 * "Guardtime" and "KSI" are trademarks or registered trademarks of
 * Guardtime, Inc., and no license to trademarks is granted; Guardtime
 * reserves and retains all trademark rights.
 */

package main

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v2"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/publications"
)

// Config is the YAML configuration of the command.
type Config struct {
	Extender     ExtenderConfig     `yaml:"extender"`
	Publications PublicationsConfig `yaml:"publications"`
	Log          LogConfig          `yaml:"log"`
}

// EndpointConfig is a KSI service endpoint.
type EndpointConfig struct {
	URL  string `yaml:"url"`
	User string `yaml:"user"`
	Key  string `yaml:"key"`
}

// ExtenderConfig is the extending service configuration. If HA endpoints are listed, the requests are sent to all
// of them and the first valid response is used.
type ExtenderConfig struct {
	EndpointConfig `yaml:",inline"`

	HA      []EndpointConfig `yaml:"ha"`
	HMAC    string           `yaml:"hmac"`
	Timeout time.Duration    `yaml:"timeout"`
}

// PublicationsConfig is the publications file configuration.
type PublicationsConfig struct {
	URL          string   `yaml:"url"`
	TrustedCerts []string `yaml:"trusted_certs"`
	CertDir      string   `yaml:"cert_dir"`
	// Publications file certificate constraints: either a known attribute name (email, common_name, country,
	// organization) or a dotted OID, mapped to the expected value.
	Constraints map[string]string `yaml:"constraints"`
	TTL         time.Duration     `yaml:"ttl"`
}

// LogConfig is the logging configuration.
type LogConfig struct {
	Level string `yaml:"level"`
	// One of text (default), json or plain.
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

const (
	defaultLogLevel  = "warning"
	defaultLogFormat = "text"
)

// loadConfig reads the configuration file. An empty path yields the default configuration.
func loadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.New(errors.KsiIoError).SetExtError(err).
				AppendMessage(fmt.Sprintf("Unable to read configuration file %s.", path))
		}
		if err := yaml.UnmarshalStrict(raw, cfg); err != nil {
			return nil, errors.New(errors.KsiInvalidFormatError).SetExtError(err).
				AppendMessage(fmt.Sprintf("Unable to parse configuration file %s.", path))
		}
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaultLogFormat
	}
	return cfg, nil
}

// overrides holds the configuration values given on the command line.
type overrides struct {
	extURL, extUser, extKey string
	pubURL                  string
	pubCerts                []string
	logLevel, logFormat     string
}

func (o *overrides) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.extURL, "extender-url", "", "Extender endpoint URL")
	fs.StringVar(&o.extUser, "extender-user", "", "Extender login ID")
	fs.StringVar(&o.extKey, "extender-key", "", "Extender HMAC key")
	fs.StringVar(&o.pubURL, "publications-url", "", "Publications file URL")
	fs.StringSliceVar(&o.pubCerts, "trusted-cert", nil, "Trusted publications file certificate (PEM file)")
	fs.StringVar(&o.logLevel, "log-level", "", "Log level (debug, info, notice, warning, error, none)")
	fs.StringVar(&o.logFormat, "log-format", "", "Log format (text, json, plain)")
}

// apply overwrites the configuration with the values set on the command line.
func (o *overrides) apply(cfg *Config) {
	for _, s := range []struct {
		dst *string
		val string
	}{
		{&cfg.Extender.URL, o.extURL},
		{&cfg.Extender.User, o.extUser},
		{&cfg.Extender.Key, o.extKey},
		{&cfg.Publications.URL, o.pubURL},
		{&cfg.Log.Level, o.logLevel},
		{&cfg.Log.Format, o.logFormat},
	} {
		if s.val != "" {
			*s.dst = s.val
		}
	}
	if len(o.pubCerts) != 0 {
		cfg.Publications.TrustedCerts = o.pubCerts
	}
}

var constraintOIDs = map[string]publications.OID{
	"email":        publications.OidEmail,
	"common_name":  publications.OidCommonName,
	"country":      publications.OidCountry,
	"organization": publications.OidOrganization,
}

// parseConstraints converts the configured constraints into certificate attributes, ordered by name.
func parseConstraints(cnstrs map[string]string) ([]pkix.AttributeTypeAndValue, error) {
	names := make([]string, 0, len(cnstrs))
	for name := range cnstrs {
		names = append(names, name)
	}
	sort.Strings(names)

	tmp := make([]pkix.AttributeTypeAndValue, 0, len(cnstrs))
	for _, name := range names {
		oid, ok := constraintOIDs[strings.ToLower(name)]
		if !ok {
			for _, s := range strings.Split(name, ".") {
				i, err := strconv.Atoi(s)
				if err != nil {
					return nil, errors.New(errors.KsiInvalidFormatError).SetExtError(err).
						AppendMessage(fmt.Sprintf("Invalid certificate constraint: %q.", name))
				}
				oid = append(oid, i)
			}
		}
		tmp = append(tmp, pkix.AttributeTypeAndValue{
			Type:  asn1.ObjectIdentifier(oid),
			Value: cnstrs[name],
		})
	}
	return tmp, nil
}
