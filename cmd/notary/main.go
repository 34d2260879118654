// Copyright 2018 Axel Wagner
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command notary timestamps a file against a chain of Roughtime
// servers, and later verifies that chain against the file.
package main

import (
	"bytes"
	"crypto/sha512"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/int08h/roughenough/client"
	"github.com/int08h/roughenough/internal/serverlist"
)

var supportedVersions = []uint32{1}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var serversJSON string
	var timeout time.Duration

	root := &cobra.Command{Use: "notary"}
	root.PersistentFlags().StringVar(&serversJSON, "servers", "", "server-list JSON to use (defaults to a built-in list)")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Second, "per-server round-trip timeout")

	root.AddCommand(newFetchCmd(&serversJSON, &timeout))
	root.AddCommand(newVerifyCmd(&serversJSON))
	return root
}

func newFetchCmd(serversJSON *string, timeout *time.Duration) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <file>",
		Short: "Timestamp a file against a chain of Roughtime servers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			servers, err := loadServerList(*serversJSON)
			if err != nil {
				return err
			}
			nonce, err := hashFileToNonce(args[0])
			if err != nil {
				return err
			}
			_, err = client.Chain(cmd.OutOrStdout(), servers, supportedVersions, nonce, *timeout)
			return err
		},
	}
}

func newVerifyCmd(serversJSON *string) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Verify a chain (read from stdin) against a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			servers, err := loadServerList(*serversJSON)
			if err != nil {
				return err
			}
			nonce, err := hashFileToNonce(args[0])
			if err != nil {
				return err
			}

			doc, err := client.LoadChain(cmd.InOrStdin())
			if err != nil {
				return err
			}
			proof, err := client.VerifyChain(doc, servers)
			if err != nil {
				return err
			}
			if proof != nil {
				return fmt.Errorf("misbehavior detected: %s", proof.Reason)
			}
			if len(doc.Links) == 0 || !bytes.Equal(doc.Links[0].NonceOrBlind, nonce[:]) {
				return fmt.Errorf("chain nonce does not match file")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "chain verified")
			return nil
		},
	}
}

// hashFileToNonce hashes name with SHA-512 and truncates to the
// 32-byte nonce size the wire format requires.
func hashFileToNonce(name string) ([32]byte, error) {
	var nonce [32]byte
	f, err := os.Open(name)
	if err != nil {
		return nonce, err
	}
	defer f.Close()

	h := sha512.New()
	if _, err := io.Copy(h, f); err != nil {
		return nonce, err
	}
	var sum [64]byte
	copy(sum[:], h.Sum(nil))
	copy(nonce[:], sum[:32])
	return nonce, nil
}

func loadServerList(path string) (*serverlist.List, error) {
	r := io.Reader(strings.NewReader(defaultServers))
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return serverlist.Read(r)
}

var defaultServers = `{
	"servers": [
		{
			"name": "Google",
			"publicKeyType": "ed25519",
			"publicKey": "etPaaIxcBMY1oUeGpwvPMCJMwlRVNxv51KK/tktoJTQ=",
			"addresses": [
				{
					"protocol": "udp",
					"address": "roughtime.sandbox.google.com:2002"
				}
			]
		},
		{
			"name": "Cloudflare",
			"publicKeyType": "ed25519",
			"publicKey": "gD63hSj3ScS+wuOeGrubXlq35N1c5Lby/S+T7MNTjxo=",
			"addresses": [
				{
					"protocol": "udp",
					"address": "roughtime.cloudflare.com:2002"
				}
			]
		}
	]
}`
