// Mintgate API server and command-line interface.
//
// The mintgate command is the entrypoint to the authorization-gated
// minting gateway: it starts the HTTP API and provides client-side
// tooling for computing and signing authorization digests.
package main

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/etherforge/mintgate/gate"
	"github.com/etherforge/mintgate/server"
)

var MintgateVersion = "0.1.0"

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "mintgate",
		Short: "Authorization-gated NFT minting gateway",
	}
	root.AddCommand(serveCommand(), hashCommand(), cancelHashCommand(), signCommand(), versionCommand())
	return root
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the mintgate HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := zerolog.New(os.Stderr).With().Timestamp().Logger()

			cfg, cfgErr := server.ConfigFromEnv()
			if cfgErr != nil {
				return cfgErr
			}

			key, keyErr := server.SigningKeyFromEnv(cmd.Context())
			if keyErr != nil {
				return keyErr
			}

			srv, srvErr := server.New(cmd.Context(), cfg, key, log)
			if srvErr != nil {
				return srvErr
			}
			defer srv.Close()

			return srv.Run()
		},
	}
}

// domainFlags identify the deployment a signature is bound to.
type domainFlags struct {
	domainName string
	chainID    string
	contract   string
}

func (f *domainFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.domainName, "domain-name", "", "Authorization domain name")
	cmd.Flags().StringVar(&f.chainID, "chain-id", "", "Chain ID the signature is bound to")
	cmd.Flags().StringVar(&f.contract, "contract", "", "Verifying contract address")
	for _, name := range []string{"domain-name", "chain-id", "contract"} {
		_ = cmd.MarkFlagRequired(name)
	}
}

func (f *domainFlags) domain() (gate.AuthorizationDomain, error) {
	chainID, parsed := new(big.Int).SetString(f.chainID, 0)
	if !parsed {
		return gate.AuthorizationDomain{}, fmt.Errorf("--chain-id must be a valid integer, got %s", f.chainID)
	}
	if !common.IsHexAddress(f.contract) {
		return gate.AuthorizationDomain{}, fmt.Errorf("--contract must be a valid Ethereum address, got %s", f.contract)
	}
	return gate.AuthorizationDomain{
		Name:              f.domainName,
		ChainID:           chainID,
		VerifyingContract: common.HexToAddress(f.contract),
	}, nil
}

// authorizationFlags are shared by the hash and sign commands.
type authorizationFlags struct {
	domainFlags
	target      string
	recipient   string
	tokenID     string
	validAfter  string
	validBefore string
	nonce       string
}

func (f *authorizationFlags) register(cmd *cobra.Command) {
	f.domainFlags.register(cmd)
	cmd.Flags().StringVar(&f.target, "target", "", "Token contract to mint on")
	cmd.Flags().StringVar(&f.recipient, "recipient", "", "Mint recipient address")
	cmd.Flags().StringVar(&f.tokenID, "token-id", "", "Token ID to mint")
	cmd.Flags().StringVar(&f.validAfter, "valid-after", "", "Unix time the authorization becomes valid after (exclusive)")
	cmd.Flags().StringVar(&f.validBefore, "valid-before", "", "Unix time the authorization expires at (exclusive)")
	cmd.Flags().StringVar(&f.nonce, "nonce", "", "One-time 0x-prefixed 32-byte nonce")
	for _, name := range []string{"target", "recipient", "token-id", "valid-after", "valid-before", "nonce"} {
		_ = cmd.MarkFlagRequired(name)
	}
}

func (f *authorizationFlags) digest() ([]byte, error) {
	domain, err := f.domain()
	if err != nil {
		return nil, err
	}
	auth, err := (&server.AuthorizationFields{
		MintRequest: server.MintRequest{
			Target:    f.target,
			Recipient: f.recipient,
			TokenID:   f.tokenID,
		},
		ValidAfter:  f.validAfter,
		ValidBefore: f.validBefore,
		Nonce:       f.nonce,
	}).ParseAuthorization()
	if err != nil {
		return nil, err
	}
	return gate.MintAuthorizationDigest(domain, auth)
}

func hashCommand() *cobra.Command {
	flags := &authorizationFlags{}
	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Print the signing digest for a mint authorization",
		RunE: func(cmd *cobra.Command, args []string) error {
			digest, err := flags.digest()
			if err != nil {
				return err
			}
			fmt.Println("0x" + hex.EncodeToString(digest))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func signCommand() *cobra.Command {
	flags := &authorizationFlags{}
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a mint authorization with the key from the environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			digest, err := flags.digest()
			if err != nil {
				return err
			}
			key, keyErr := server.SigningKeyFromEnv(cmd.Context())
			if keyErr != nil {
				return keyErr
			}
			signature, signErr := gate.SignDigest(digest, key)
			if signErr != nil {
				return signErr
			}
			fmt.Println("0x" + hex.EncodeToString(signature))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func cancelHashCommand() *cobra.Command {
	flags := &domainFlags{}
	var authorizer, nonce string
	cmd := &cobra.Command{
		Use:   "cancel-hash",
		Short: "Print the signing digest for an authorization cancellation",
		RunE: func(cmd *cobra.Command, args []string) error {
			domain, err := flags.domain()
			if err != nil {
				return err
			}
			if !common.IsHexAddress(authorizer) {
				return fmt.Errorf("--authorizer must be a valid Ethereum address, got %s", authorizer)
			}
			if len(nonce) != 2+2*common.HashLength {
				return fmt.Errorf("--nonce must be a 0x-prefixed 32-byte hex value, got %s", nonce)
			}
			digest, err := gate.CancelAuthorizationDigest(domain, gate.CancelAuthorization{
				Authorizer: common.HexToAddress(authorizer),
				Nonce:      common.HexToHash(nonce),
			})
			if err != nil {
				return err
			}
			fmt.Println("0x" + hex.EncodeToString(digest))
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&authorizer, "authorizer", "", "Authorizer address whose nonce is being cancelled")
	cmd.Flags().StringVar(&nonce, "nonce", "", "One-time 0x-prefixed 32-byte nonce")
	for _, name := range []string{"authorizer", "nonce"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the mintgate version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(MintgateVersion)
		},
	}
}
