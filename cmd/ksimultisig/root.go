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
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/guardtime/goksi-multisig/errors"
	"github.com/guardtime/goksi-multisig/hash"
	"github.com/guardtime/goksi-multisig/log"
	"github.com/guardtime/goksi-multisig/multisig"
	"github.com/guardtime/goksi-multisig/net"
	"github.com/guardtime/goksi-multisig/publications"
	"github.com/guardtime/goksi-multisig/service"
)

// app is the state shared by the commands.
type app struct {
	cfgPath   string
	container string
	flags     overrides

	cfg     *Config
	logFile *os.File
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:          "ksimultisig",
		Short:        "KSI multi-signature container tool",
		Long:         `Add, retrieve, extend and verify KSI signatures stored in a multi-signature container.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	cmd.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "Configuration file (YAML)")
	cmd.PersistentFlags().StringVarP(&a.container, "container", "m", "", "Multi-signature container file")
	a.flags.addFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		addCmd(a),
		getCmd(a),
		removeCmd(a),
		listCmd(a),
		extendCmd(a),
		verifyCmd(a),
	)
	return cmd
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.cfgPath)
	if err != nil {
		return err
	}
	a.flags.apply(cfg)
	a.cfg = cfg
	return a.initLogger(cmd.ErrOrStderr())
}

func (a *app) close() error {
	log.SetLogger(nil)
	if a.logFile == nil {
		return nil
	}
	err := a.logFile.Close()
	a.logFile = nil
	return err
}

// initLogger registers the configured logger.
func (a *app) initLogger(w io.Writer) error {
	prio, err := log.ParsePriority(a.cfg.Log.Level)
	if err != nil {
		return errors.New(errors.KsiInvalidFormatError).SetExtError(err)
	}
	if prio == log.NONE {
		log.SetLogger(nil)
		return nil
	}
	if a.cfg.Log.File != "" {
		f, err := os.OpenFile(a.cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			return errors.New(errors.KsiIoError).SetExtError(err).AppendMessage("Unable to open log file.")
		}
		a.logFile = f
		w = f
	}

	switch a.cfg.Log.Format {
	case "text":
		l := logrus.New()
		l.SetOutput(w)
		l.SetLevel(logrusLevel(prio))
		log.SetLogger(log.NewLogrus(l, "ksimultisig"))
	case "json":
		l := zerolog.New(w).Level(zerologLevel(prio)).With().Timestamp().Logger()
		log.SetLogger(log.NewZerolog(l))
	case "plain":
		l, err := log.New(prio, w)
		if err != nil {
			return err
		}
		log.SetLogger(l)
	default:
		return errors.New(errors.KsiInvalidFormatError).
			AppendMessage(fmt.Sprintf("Unknown log format: %q.", a.cfg.Log.Format))
	}
	return nil
}

func logrusLevel(p log.Priority) logrus.Level {
	switch p {
	case log.DEBUG:
		return logrus.DebugLevel
	case log.INFO, log.NOTICE:
		return logrus.InfoLevel
	case log.WARNING:
		return logrus.WarnLevel
	default:
		return logrus.ErrorLevel
	}
}

func zerologLevel(p log.Priority) zerolog.Level {
	switch p {
	case log.DEBUG:
		return zerolog.DebugLevel
	case log.INFO, log.NOTICE:
		return zerolog.InfoLevel
	case log.WARNING:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// load reads the container file. A missing file yields an empty container if create is set.
func (a *app) load(create bool) (*multisig.MultiSignature, error) {
	if a.container == "" {
		return nil, errors.New(errors.KsiInvalidArgumentError).AppendMessage("Container file is not specified.")
	}
	if _, err := os.Stat(a.container); os.IsNotExist(err) && create {
		log.Info("Creating new multi-signature container: ", a.container)
		return multisig.New()
	}
	return multisig.New(multisig.FromFile(a.container))
}

// save writes the container file. The file is replaced only after the new content has been written.
func (a *app) save(ms *multisig.MultiSignature) error {
	tmp, err := os.CreateTemp(filepath.Dir(a.container), filepath.Base(a.container)+".*")
	if err != nil {
		return errors.New(errors.KsiIoError).SetExtError(err).AppendMessage("Unable to create container file.")
	}
	defer os.Remove(tmp.Name())

	if _, err := ms.WriteTo(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.New(errors.KsiIoError).SetExtError(err).AppendMessage("Unable to write container file.")
	}
	if err := os.Rename(tmp.Name(), a.container); err != nil {
		return errors.New(errors.KsiIoError).SetExtError(err).AppendMessage("Unable to replace container file.")
	}
	return nil
}

// pubFileHandler returns the publications file handler, or nil if no publications file is configured.
func (a *app) pubFileHandler() (*publications.FileHandler, error) {
	pc := a.cfg.Publications
	if pc.URL == "" {
		return nil, nil
	}

	settings := []publications.FileHandlerSetting{
		publications.FileHandlerSetPublicationsURL(pc.URL),
	}
	for _, c := range pc.TrustedCerts {
		settings = append(settings, publications.FileHandlerSetTrustedCertificateFromFilePem(c))
	}
	if pc.CertDir != "" {
		settings = append(settings, publications.FileHandlerSetTrustedCertificateDir(pc.CertDir))
	}
	if len(pc.Constraints) != 0 {
		cnstrs, err := parseConstraints(pc.Constraints)
		if err != nil {
			return nil, err
		}
		settings = append(settings, publications.FileHandlerSetFileCertConstraints(cnstrs))
	}
	if pc.TTL != 0 {
		settings = append(settings, publications.FileHandlerSetFileTTL(pc.TTL))
	}
	return publications.NewFileHandler(settings...)
}

// serviceOptions returns the extender endpoint options.
func (a *app) serviceOptions() ([]service.Option, error) {
	ec := a.cfg.Extender

	var common []service.Option
	if ec.HMAC != "" {
		alg, err := hash.ByName(ec.HMAC)
		if err != nil {
			return nil, err
		}
		common = append(common, service.OptHmacAlgorithm(alg))
	}
	var netOpts []net.ClientOpt
	if ec.Timeout != 0 {
		netOpts = append(netOpts, net.ClientOptRequestTimeout(ec.Timeout))
	}
	endpoint := func(e EndpointConfig) []service.Option {
		return append([]service.Option{service.OptEndpoint(e.URL, e.User, e.Key, netOpts...)}, common...)
	}

	switch {
	case ec.URL != "" && len(ec.HA) != 0:
		return nil, errors.New(errors.KsiInvalidFormatError).
			AppendMessage("Extender URL and HA endpoints must not be configured together.")
	case ec.URL != "":
		return endpoint(ec.EndpointConfig), nil
	case len(ec.HA) != 0:
		var opts []service.Option
		for _, e := range ec.HA {
			opts = append(opts, service.OptHighAvailability(endpoint(e)...))
		}
		return opts, nil
	default:
		return nil, errors.New(errors.KsiInvalidStateError).AppendMessage("Extender is not configured.")
	}
}

// extender returns the configured extending service.
func (a *app) extender() (*service.Extender, error) {
	opts, err := a.serviceOptions()
	if err != nil {
		return nil, err
	}
	h, err := a.pubFileHandler()
	if err != nil {
		return nil, err
	}
	return service.NewExtender(h, opts...)
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func parseHash(s string) (hash.Imprint, error) {
	h, err := hash.ParseImprint(s)
	if err != nil {
		return nil, errors.KsiErr(err).AppendMessage("Document hash must be in form <algorithm>:<hex>.")
	}
	return h, nil
}
