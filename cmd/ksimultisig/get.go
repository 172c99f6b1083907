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
	"os"

	"github.com/spf13/cobra"

	"github.com/guardtime/goksi-multisig/errors"
)

func getCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "get <hash> -o <signature-file>",
		Short: "Extracts the earliest signature of the document hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := parseHash(args[0])
			if err != nil {
				return err
			}
			ms, err := a.load(false)
			if err != nil {
				return err
			}
			sig, err := ms.Get(h)
			if err != nil {
				return err
			}
			bin, err := sig.Serialize()
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, bin, 0644); err != nil {
				return errors.New(errors.KsiIoError).SetExtError(err).AppendMessage("Unable to write signature file.")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "Output signature file")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}
