package driven

// TokenCipher encrypts credential material before persistence.
type TokenCipher interface {
	// Encrypt returns an opaque ciphertext for plaintext.
	Encrypt(plaintext string) (string, error)
	// Decrypt returns the plaintext. Failures are *domain.CredentialError.
	Decrypt(ciphertext string) (string, error)
}
