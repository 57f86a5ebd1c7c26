package xpresspay

import (
	"os"

	"github.com/joho/godotenv"

	xperrors "github.com/xpresspay/xpresspay-go/pkg/errors"
)

// Environment variable names read by NewFromEnv.
const (
	EnvPublicKey = "XPRESSPAY_PUBLIC_KEY"
	EnvSecretKey = "XPRESSPAY_SECRET_KEY"
)

type credentials struct {
	PublicKey string
	SecretKey string
}

// credentialsFromEnv loads a .env file when present, then reads the key
// variables. A missing .env is not an error; a missing public key is.
func credentialsFromEnv() (credentials, error) {
	_ = godotenv.Load()

	publicKey := os.Getenv(EnvPublicKey)
	if publicKey == "" {
		return credentials{}, xperrors.NewLocalValidationError(EnvPublicKey, "is not set")
	}
	return credentials{
		PublicKey: publicKey,
		SecretKey: os.Getenv(EnvSecretKey),
	}, nil
}
