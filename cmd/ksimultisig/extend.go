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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/guardtime/goksi-multisig/log"
	"github.com/guardtime/goksi-multisig/signature"
)

func extendCmd(a *app) *cobra.Command {
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "extend [--overwrite]",
		Short: "Extends the signatures in the container",
		Long: `Extends the signatures to the nearest publication of the publications file. If the publications file
is not configured, the signatures are extended to the calendar head.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ms, err := a.load(false)
			if err != nil {
				return err
			}
			ext, err := a.extender()
			if err != nil {
				return err
			}

			ctx := cmdContext(cmd)
			var src signature.PublicationSource
			if a.cfg.Publications.URL != "" {
				pubFile, err := ext.PublicationsFile(ctx)
				if err != nil {
					return err
				}
				src = pubFile
			} else {
				log.Notice("Publications file is not configured, extending to calendar head.")
			}

			n, err := ms.Extend(ctx, ext, src, overwrite)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Extended %d of %d signature(s).\n", n, ms.Count())
			if n == 0 {
				return nil
			}
			return a.save(ms)
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Extend also the signatures extended to a later publication")
	return cmd
}
