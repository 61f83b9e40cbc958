package crypto

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEncryptDecryptCredentials(t *testing.T) {
	auth := HMACAuth{Key: "api-key", Secret: "api-secret", Passphrase: "api-pass"}

	blob, err := EncryptCredentials(auth, "hunter2")
	if err != nil {
		t.Fatalf("EncryptCredentials failed: %v", err)
	}

	got, err := DecryptCredentials(blob, "hunter2")
	if err != nil {
		t.Fatalf("DecryptCredentials failed: %v", err)
	}
	if got != auth {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", got, auth)
	}
}

func TestDecryptCredentialsWrongPassword(t *testing.T) {
	blob, err := EncryptCredentials(HMACAuth{Key: "k", Secret: "s", Passphrase: "p"}, "right")
	if err != nil {
		t.Fatalf("EncryptCredentials failed: %v", err)
	}

	if _, err := DecryptCredentials(blob, "wrong"); err == nil {
		t.Error("expected decryption failure with wrong password")
	}
}

func TestEncryptCredentialsEmptyPassword(t *testing.T) {
	if _, err := EncryptCredentials(HMACAuth{Key: "k"}, ""); err == nil {
		t.Error("expected error for empty password")
	}
}

func TestLoadCredentials(t *testing.T) {
	// Direct values take precedence.
	auth, err := LoadCredentials(CredentialConfig{Key: "k", Secret: "s", Passphrase: "p"})
	if err != nil {
		t.Fatalf("LoadCredentials failed: %v", err)
	}
	if !auth.Complete() {
		t.Error("expected complete triple from direct values")
	}

	// Encrypted file path.
	want := HMACAuth{Key: "fk", Secret: "fs", Passphrase: "fp"}
	blob, err := EncryptCredentials(want, "pw")
	if err != nil {
		t.Fatalf("EncryptCredentials failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "creds.json")
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	auth, err = LoadCredentials(CredentialConfig{EncryptedPath: path, Password: "pw"})
	if err != nil {
		t.Fatalf("LoadCredentials from file failed: %v", err)
	}
	if auth != want {
		t.Errorf("got %+v, want %+v", auth, want)
	}

	// Nothing configured: empty triple, no error.
	auth, err = LoadCredentials(CredentialConfig{})
	if err != nil {
		t.Fatalf("LoadCredentials empty config failed: %v", err)
	}
	if auth.Complete() {
		t.Error("expected incomplete triple for empty config")
	}
}
