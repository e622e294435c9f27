// Package flowcrypto implements the payload encryption WhatsApp Flows use by default.
package flowcrypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/mamadbah2/wacloud/pkg/flows"
)

// RSACodec implements the default WhatsApp Flows scheme: the AES key is RSA-OAEP
// (SHA-256) encrypted with the business public key, payloads are AES-GCM sealed, and
// responses use the bitwise inverted request IV.
type RSACodec struct {
	key *rsa.PrivateKey
}

var (
	_ flows.Decryptor = (*RSACodec)(nil)
	_ flows.Encryptor = (*RSACodec)(nil)
)

// NewRSACodec parses a PEM encoded PKCS#1 or PKCS#8 RSA private key.
func NewRSACodec(privateKeyPEM []byte) (*RSACodec, error) {
	block, _ := pem.Decode(privateKeyPEM)
	if block == nil {
		return nil, errors.New("flowcrypto: no PEM block in private key")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return &RSACodec{key: key}, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("flowcrypto: parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("flowcrypto: private key is %T, not RSA", parsed)
	}
	return &RSACodec{key: key}, nil
}

func (c *RSACodec) Decrypt(_ context.Context, req flows.EncryptedRequest) ([]byte, flows.Session, error) {
	data, err := base64.StdEncoding.DecodeString(req.EncryptedFlowData)
	if err != nil {
		return nil, flows.Session{}, fmt.Errorf("decode flow data: %w", err)
	}
	encKey, err := base64.StdEncoding.DecodeString(req.EncryptedAESKey)
	if err != nil {
		return nil, flows.Session{}, fmt.Errorf("decode aes key: %w", err)
	}
	iv, err := base64.StdEncoding.DecodeString(req.InitialVector)
	if err != nil {
		return nil, flows.Session{}, fmt.Errorf("decode initial vector: %w", err)
	}

	aesKey, err := rsa.DecryptOAEP(sha256.New(), nil, c.key, encKey, nil)
	if err != nil {
		return nil, flows.Session{}, fmt.Errorf("decrypt aes key: %w", err)
	}

	gcm, err := newGCM(aesKey, len(iv))
	if err != nil {
		return nil, flows.Session{}, err
	}
	plaintext, err := gcm.Open(nil, iv, data, nil)
	if err != nil {
		return nil, flows.Session{}, fmt.Errorf("open flow data: %w", err)
	}
	return plaintext, flows.Session{AESKey: aesKey, IV: iv}, nil
}

func (c *RSACodec) Encrypt(_ context.Context, plaintext []byte, session flows.Session) (string, error) {
	gcm, err := newGCM(session.AESKey, len(session.IV))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(gcm.Seal(nil, FlipIV(session.IV), plaintext, nil)), nil
}

// FlipIV returns iv with every bit inverted.
func FlipIV(iv []byte) []byte {
	flipped := make([]byte, len(iv))
	for i, b := range iv {
		flipped[i] = ^b
	}
	return flipped
}

func newGCM(key []byte, nonceSize int) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	if nonceSize == 0 {
		return nil, errors.New("empty initial vector")
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return gcm, nil
}
