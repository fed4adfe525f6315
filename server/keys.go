package server

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/term"
)

// SigningKeyFromEnv loads the gateway's operator signing key following
// this strategy:
//   - If MINTGATE_PRIVATE_KEY is set, it takes priority. It is expected to
//     be a hex-encoded Ethereum account private key.
//   - If MINTGATE_AWS_SECRET_NAME is set, the hex-encoded key is fetched
//     from AWS Secrets Manager under that name, using the ambient AWS
//     configuration.
//   - If MINTGATE_KEYSTORE is set, it is expected to be a path to a
//     keystore file. If MINTGATE_KEYSTORE_PASSWORD is also set, that is
//     used as the decryption password; otherwise the user is prompted.
func SigningKeyFromEnv(ctx context.Context) (*ecdsa.PrivateKey, error) {
	privateKeyHex := os.Getenv("MINTGATE_PRIVATE_KEY")
	if privateKeyHex != "" {
		return crypto.HexToECDSA(privateKeyHex)
	}

	secretName := os.Getenv("MINTGATE_AWS_SECRET_NAME")
	if secretName != "" {
		return privateKeyFromSecretsManager(ctx, secretName)
	}

	keystoreFile := os.Getenv("MINTGATE_KEYSTORE")
	if keystoreFile == "" {
		return nil, errors.New("one of MINTGATE_PRIVATE_KEY, MINTGATE_AWS_SECRET_NAME or MINTGATE_KEYSTORE must be set")
	}

	prompt := false
	keystorePassword, ok := os.LookupEnv("MINTGATE_KEYSTORE_PASSWORD")
	if !ok {
		prompt = true
	}
	return PrivateKeyFromKeystoreFile(keystoreFile, keystorePassword, prompt)
}

func privateKeyFromSecretsManager(ctx context.Context, secretName string) (*ecdsa.PrivateKey, error) {
	awsConfig, configErr := awsconfig.LoadDefaultConfig(ctx)
	if configErr != nil {
		return nil, fmt.Errorf("loading AWS configuration: %w", configErr)
	}

	client := secretsmanager.NewFromConfig(awsConfig)
	secret, secretErr := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: &secretName,
	})
	if secretErr != nil {
		return nil, fmt.Errorf("fetching secret %s: %w", secretName, secretErr)
	}
	if secret.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", secretName)
	}

	return crypto.HexToECDSA(*secret.SecretString)
}

// PrivateKeyFromKeystoreFile loads a private key from a keystore file. If
// prompt is true, the user is interactively prompted for the password even
// if the password argument is nonempty.
func PrivateKeyFromKeystoreFile(keystoreFile, password string, prompt bool) (*ecdsa.PrivateKey, error) {
	keystoreContent, readErr := os.ReadFile(keystoreFile)
	if readErr != nil {
		return nil, readErr
	}

	if prompt {
		fmt.Printf("Please provide a password for keystore (%s): ", keystoreFile)
		passwordRaw, inputErr := term.ReadPassword(int(os.Stdin.Fd()))
		if inputErr != nil {
			return nil, fmt.Errorf("error reading password: %s", inputErr.Error())
		}
		fmt.Print("\n")
		password = string(passwordRaw)
	}

	key, err := keystore.DecryptKey(keystoreContent, password)
	if err != nil {
		return nil, err
	}
	return key.PrivateKey, nil
}
